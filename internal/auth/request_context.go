// Package auth holds the credential state shared by every outbound backend
// request: the base URL and the current bearer token.
package auth

import (
	"strings"
	"sync"
)

const bearerPrefix = "Bearer "

// RequestContext is constructed once per process and injected into the API
// client. Only TokenStore writes the token; reads are safe from any goroutine
// and observe the latest write immediately.
type RequestContext struct {
	mu      sync.RWMutex
	baseURL string
	token   string
}

func NewRequestContext(baseURL string) *RequestContext {
	return &RequestContext{baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *RequestContext) BaseURL() string {
	return c.baseURL
}

func (c *RequestContext) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authorization returns the header value for the current token, or "" when
// there is none.
func (c *RequestContext) Authorization() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return ""
	}
	return bearerPrefix + c.token
}

// URL joins path onto the base URL.
func (c *RequestContext) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *RequestContext) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}
