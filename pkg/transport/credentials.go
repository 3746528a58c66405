package transport

import "sync"

// Credentials holds the bearer token pair for the backend. The push channel
// and the REST client both read the access token through here so a rotation
// is picked up by the next call, never a stale capture.
type Credentials struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewCredentials(access, refresh string) *Credentials {
	return &Credentials{access: access, refresh: refresh}
}

// AccessToken returns the current access token, empty when signed out.
func (c *Credentials) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

// RefreshToken returns the current refresh token.
func (c *Credentials) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresh
}

// Set replaces both tokens, e.g. after a successful refresh.
func (c *Credentials) Set(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = access
	if refresh != "" {
		c.refresh = refresh
	}
}

// Clear drops both tokens; subsequent authenticated calls fail fast.
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = ""
	c.refresh = ""
}
