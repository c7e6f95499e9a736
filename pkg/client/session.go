package client

import "net/http"

// Session is a client scoped to a single logical call. It owns its own
// connection pool, acquired at construction and released by Close, so callers
// that synthesize one session per invocation never share transport state.
type Session struct {
	*Client
}

// NewSession creates a scoped client with a dedicated connection pool.
func NewSession(cfg Config) (*Session, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	// Dedicated transport: sessions must not share idle connections.
	c.httpClient = &http.Client{
		Timeout:   c.httpClient.Timeout,
		Transport: &http.Transport{},
	}
	return &Session{Client: c}, nil
}

// Close releases the session's connection pool. Safe to call on every exit
// path, including after errors.
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
