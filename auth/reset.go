package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/lakonic/taskdeck/webutil"
)

const (
	resetTokenBytes = 32
	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = time.Hour
)

// ConsumeResult classifies a reset token redemption attempt.
type ConsumeResult int

const (
	ResetOK ConsumeResult = iota
	ResetInvalid
	ResetExpired
)

// ResetToken maps an issued token to the user it can reset.
type ResetToken struct {
	UserID    int64
	ExpiresAt time.Time
}

// ResetTokenStore holds outstanding reset tokens. Consume must be atomic:
// when two redemptions race on the same token, exactly one may observe
// ResetOK.
type ResetTokenStore interface {
	Put(token string, rt ResetToken)
	// Consume removes and returns the token. An expired token is removed on
	// access (lazy eviction) and reported as ResetExpired exactly once;
	// any later access reports ResetInvalid.
	Consume(token string, now time.Time) (ResetToken, ConsumeResult)
}

// MemoryResetTokenStore is the default mutex-guarded in-process store.
// Tokens are lost on restart, which matches the reset link's short lifetime.
type MemoryResetTokenStore struct {
	mu     sync.Mutex
	tokens map[string]ResetToken
}

func NewMemoryResetTokenStore() *MemoryResetTokenStore {
	return &MemoryResetTokenStore{tokens: make(map[string]ResetToken)}
}

func (m *MemoryResetTokenStore) Put(token string, rt ResetToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = rt
}

func (m *MemoryResetTokenStore) Consume(token string, now time.Time) (ResetToken, ConsumeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.tokens[token]
	if !ok {
		return ResetToken{}, ResetInvalid
	}
	delete(m.tokens, token)
	if now.After(rt.ExpiresAt) {
		return ResetToken{}, ResetExpired
	}
	return rt, ResetOK
}

// ResetService issues and redeems single-use password reset tokens.
type ResetService struct {
	store   ResetTokenStore
	nowFunc func() time.Time
}

func NewResetService(store ResetTokenStore) *ResetService {
	return &ResetService{
		store:   store,
		nowFunc: time.Now,
	}
}

// Issue creates a token for the user, valid for ResetTokenTTL.
func (s *ResetService) Issue(userID int64) (string, error) {
	token, err := webutil.GenerateRandomToken(resetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	s.store.Put(token, ResetToken{
		UserID:    userID,
		ExpiresAt: s.nowFunc().Add(ResetTokenTTL),
	})
	return token, nil
}

// Redeem consumes the token. On ResetOK the returned user ID identifies
// whose password may be overwritten.
func (s *ResetService) Redeem(token string) (int64, ConsumeResult) {
	rt, result := s.store.Consume(token, s.nowFunc())
	if result != ResetOK {
		return 0, result
	}
	return rt.UserID, ResetOK
}
