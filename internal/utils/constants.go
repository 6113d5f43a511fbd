package utils

const (
	OrganizationName                      = "Purrfect Stays"
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"

	SupportEmail = "support@purrfectstays.org"
)
