package storage

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
)

// CodeStore holds at most one verification code per slot key. Writing a
// new code to a slot replaces whatever was there.
type CodeStore interface {
	Save(key string, code models.VerificationCode)
	Load(key string) (models.VerificationCode, bool)
	Clear(key string)
}

// MemoryCodeStore is a CodeStore on top of go-cache. Entries outlive the
// code's own expiry by a margin so Validate can still report "expired".
type MemoryCodeStore struct {
	cache  *gocache.Cache
	margin time.Duration
}

func NewMemoryCodeStore(margin time.Duration) *MemoryCodeStore {
	if margin <= 0 {
		margin = time.Hour
	}
	return &MemoryCodeStore{
		cache:  gocache.New(models.VerificationCodeTTL+margin, 10*time.Minute),
		margin: margin,
	}
}

func (s *MemoryCodeStore) Save(key string, code models.VerificationCode) {
	ttl := time.Until(code.ExpiresAt) + s.margin
	if ttl <= 0 {
		ttl = s.margin
	}
	s.cache.Set(key, code, ttl)
}

func (s *MemoryCodeStore) Load(key string) (models.VerificationCode, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return models.VerificationCode{}, false
	}
	code, ok := v.(models.VerificationCode)
	return code, ok
}

func (s *MemoryCodeStore) Clear(key string) {
	s.cache.Delete(key)
}

func (s *MemoryCodeStore) Len() int {
	return s.cache.ItemCount()
}
