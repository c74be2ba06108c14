package form

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PendingState is what a rendered form expects to see on submission.
type PendingState struct {
	Kind     Kind
	TypeName string
	DocID    string
	Revision string
	User     string
}

// TokenCache maps form tokens to their pending state. Entries expire after
// ttl and the oldest are evicted once size is reached.
type TokenCache struct {
	entries *expirable.LRU[string, PendingState]
}

func NewTokenCache(size int, ttl time.Duration) *TokenCache {
	return &TokenCache{entries: expirable.NewLRU[string, PendingState](size, nil, ttl)}
}

func (c *TokenCache) Issue(state PendingState) string {
	token := newToken()
	c.entries.Add(token, state)
	return token
}

func (c *TokenCache) Lookup(token string) (PendingState, bool) {
	if token == "" {
		return PendingState{}, false
	}
	return c.entries.Get(token)
}

func (c *TokenCache) Consume(token string) {
	c.entries.Remove(token)
}

func (c *TokenCache) Len() int {
	return c.entries.Len()
}

func newToken() string {
	bytes := make([]byte, 20)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
