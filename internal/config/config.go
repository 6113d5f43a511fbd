package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type Config struct {
	OrganizationName string
	AppName          string
	Env              string
	AppPort          string
	AppUrl           string

	// Backend (Supabase). Missing values are not fatal here: every core
	// operation fails with CONFIG_ERROR instead.
	SupabaseURL     string
	SupabaseAnonKey string

	// DBUrl enables the maintenance jobs (retention cleanup, GDPR deletion,
	// migrations). Optional.
	DBUrl string

	SendgridAPIKey   string
	QuizTicketSecret string
	GeoLookupURL     string

	// StatsOrigin, when set, is sent as Origin on backend calls made by the
	// stats poller so a missing CORS allowance shows up as cors-error.
	StatsOrigin   string
	StatsFallback int

	FlowSessionTTL time.Duration

	// TrustProxy makes the API take the client address from the first
	// X-Forwarded-For hop. Only enable it behind a proxy that overwrites
	// the header.
	TrustProxy bool

	// Feature-flag snapshots
	LDFlag_SendgridFromEmail        string
	LDFlag_ValidateEmailWithSG      bool
	LDFlag_CheckEmailDeliverability bool
	LDFlag_StatsPollingEnabled      bool
	LDFlag_CORSHighSecurity         bool
}

const (
	OrganizationName    = utils.OrganizationName
	DefaultAppName      = "purrfect-waitlist"
	LDConnectionTimeout = 5 * time.Second

	defaultFromEmail = "hello@purrfectstays.org"
)

// build-time overrides, set with -ldflags
var (
	AppName             string
	LDServerContextKey  string
	LDServerContextKind string
)

// LoadConfig reads ldflags, .env, env vars, then optional BWS secrets and
// LaunchDarkly flags, in that order. Later sources win for secrets.
func LoadConfig() *Config {
	//----------------------------------------------------------------------
	// 1) ldflags
	//----------------------------------------------------------------------
	appName := AppName
	if appName == "" {
		utils.Logger.Warnf("AppName was not provided via ldflags, defaulting to %s", DefaultAppName)
		appName = DefaultAppName
	}
	utils.Logger.Info("Loading config for app: ", appName)

	//----------------------------------------------------------------------
	// 2) .env (local development only; absence is fine)
	//----------------------------------------------------------------------
	if err := godotenv.Load(); err == nil {
		utils.Logger.Debug("Loaded .env file")
	}

	//----------------------------------------------------------------------
	// 3) Runtime environment vars
	//----------------------------------------------------------------------
	env := os.Getenv("ENV")
	if env == "" {
		utils.Logger.Fatal("ENV env var is missing")
	}
	appURL := os.Getenv("APP_URL_FROM_ANYWHERE")
	if appURL == "" {
		utils.Logger.Fatal("APP_URL_FROM_ANYWHERE env var is missing")
	}
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}

	cfg := &Config{
		OrganizationName: OrganizationName,
		AppName:          appName,
		Env:              env,
		AppPort:          appPort,
		AppUrl:           strings.TrimRight(appURL, "/"),
		SupabaseURL:      os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:  os.Getenv("SUPABASE_ANON_KEY"),
		DBUrl:            os.Getenv("DB_URL"),
		SendgridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		QuizTicketSecret: os.Getenv("QUIZ_TICKET_SECRET"),
		GeoLookupURL:     os.Getenv("GEO_LOOKUP_URL"),
		StatsOrigin:      os.Getenv("STATS_ORIGIN"),
		StatsFallback:    envInt("STATS_FALLBACK_TOTAL", 0),
		FlowSessionTTL:   envDuration("FLOW_SESSION_TTL", 30*time.Minute),
		TrustProxy:       envBool("TRUST_PROXY", false),

		LDFlag_SendgridFromEmail:   defaultFromEmail,
		LDFlag_StatsPollingEnabled: true,
	}

	//----------------------------------------------------------------------
	// 4) BWS secrets (optional)
	//----------------------------------------------------------------------
	ldSDK := os.Getenv("LD_SDK_KEY")
	if os.Getenv("BWS_ACCESS_TOKEN") != "" {
		secrets := loadBWSSecrets(fmt.Sprintf("%s-%s", appName, env))
		overrideFromSecrets(cfg, secrets)
		if v := secrets["LD_SDK_KEY"]; v != "" {
			ldSDK = v
		}
	} else {
		utils.Logger.Debug("BWS_ACCESS_TOKEN not set, skipping Bitwarden secrets")
	}

	//----------------------------------------------------------------------
	// 5) LaunchDarkly flags (optional)
	//----------------------------------------------------------------------
	if ldSDK != "" {
		loadFlags(cfg, ldSDK)
	} else {
		utils.Logger.Debug("LD_SDK_KEY not set, using default flag values")
	}

	//----------------------------------------------------------------------
	// 6) Sanity warnings
	//----------------------------------------------------------------------
	if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
		utils.Logger.Warn("SUPABASE_URL / SUPABASE_ANON_KEY not set; registration calls will fail with CONFIG_ERROR")
	}
	if cfg.DBUrl == "" {
		utils.Logger.Warn("DB_URL not set; retention cleanup and deletion requests are disabled")
	}

	utils.Logger.Infof("Loaded config for %s (%s)", appName, env)
	return cfg
}

func loadBWSSecrets(projectName string) map[string]string {
	client, err := utils.NewBWSSecretsClient()
	if err != nil {
		utils.Logger.WithError(err).Fatal("Init BWS client")
	}
	defer client.Close()

	secrets, err := client.GetBWSSecrets(projectName)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Fetch BWS secrets")
	}
	return secrets
}

func overrideFromSecrets(cfg *Config, secrets map[string]string) {
	set := func(dst *string, key string) {
		if v, ok := secrets[key]; ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.SupabaseURL, "SUPABASE_URL")
	set(&cfg.SupabaseAnonKey, "SUPABASE_ANON_KEY")
	set(&cfg.DBUrl, "DB_URL")
	set(&cfg.SendgridAPIKey, "SENDGRID_API_KEY")
	set(&cfg.QuizTicketSecret, "QUIZ_TICKET_SECRET")
}

func loadFlags(cfg *Config, sdkKey string) {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if ldClient != nil {
		defer ldClient.Close()
	}
	if err != nil || !ldClient.Initialized() {
		utils.Logger.Warn("LaunchDarkly client failed to initialize, using default flag values")
		return
	}

	kind, key := LDServerContextKind, LDServerContextKey
	if kind == "" {
		kind = "service"
	}
	if key == "" {
		key = cfg.AppName
	}
	ctx := ldcontext.NewWithKind(ldcontext.Kind(kind), key)

	if v, err := ldClient.StringVariation("sendgrid_from_email", ctx, defaultFromEmail); err == nil && v != "" {
		cfg.LDFlag_SendgridFromEmail = v
	}
	utils.Logger.Debugf("sendgrid_from_email flag: %s", cfg.LDFlag_SendgridFromEmail)

	cfg.LDFlag_ValidateEmailWithSG, _ = ldClient.BoolVariation("validate_email_with_sendgrid", ctx, false)
	utils.Logger.Debugf("validate_email_with_sendgrid flag: %t", cfg.LDFlag_ValidateEmailWithSG)

	cfg.LDFlag_CheckEmailDeliverability, _ = ldClient.BoolVariation("check_email_deliverability", ctx, false)
	utils.Logger.Debugf("check_email_deliverability flag: %t", cfg.LDFlag_CheckEmailDeliverability)

	cfg.LDFlag_StatsPollingEnabled, _ = ldClient.BoolVariation("stats_polling_enabled", ctx, true)
	utils.Logger.Debugf("stats_polling_enabled flag: %t", cfg.LDFlag_StatsPollingEnabled)

	cfg.LDFlag_CORSHighSecurity, _ = ldClient.BoolVariation("cors_high_security", ctx, false)
	utils.Logger.Debugf("cors_high_security flag: %t", cfg.LDFlag_CORSHighSecurity)
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		utils.Logger.Warnf("Invalid %s %q, using %d", key, v, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		utils.Logger.Warnf("Invalid %s %q, using %t", key, v, def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		utils.Logger.Warnf("Invalid %s %q, using %s", key, v, def)
		return def
	}
	return d
}

// AllowedOrigins returns the CORS origins for the HTTP API.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.AppUrl}
	if !c.LDFlag_CORSHighSecurity {
		origins = append(origins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}
	return origins
}

func (c *Config) BackendConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

func (c *Config) Close() {
}
