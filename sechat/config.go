package sechat

import "time"

// Config controls how the SDK talks to the service.
type Config struct {
	// SiteURL is the main site origin used for the login handshake,
	// e.g. "https://meta.stackexchange.com".
	SiteURL string

	// ChatURL is the chat subsystem origin, e.g.
	// "https://chat.stackexchange.com".
	ChatURL string

	// UserAgent identifies the client on every request, including the
	// streaming connection (the service requires it there).
	UserAgent string

	// HistoryDepth is how many events a room fetches when its buffer
	// bootstraps.
	HistoryDepth int

	// HandshakeTimeout bounds the websocket dial. Zero disables it.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds a single frame read. Zero disables it; the
	// service sends heartbeat frames, so a generous value still
	// detects dead connections.
	ReadTimeout time.Duration

	// ReconnectBase and ReconnectMax shape the exponential backoff
	// between failed stream negotiations. Setting both to zero makes
	// the connector retry in a tight loop.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	// FkeyFunc extracts the session token from a page. Defaults to
	// scrape.Fkey.
	FkeyFunc func(page string) (string, error)

	// UserIDFunc extracts the numeric user identity from the
	// post-login chat page. Defaults to scrape.UserID.
	UserIDFunc func(page string) (int64, error)

	// SaveCookies, when set, receives the exported cookie blob after a
	// fresh credential exchange succeeds. The blob format is opaque.
	SaveCookies func(blob []byte) error
}

// DefaultConfig returns sensible defaults for the public deployment.
func DefaultConfig() Config {
	return Config{
		SiteURL:          "https://meta.stackexchange.com",
		ChatURL:          "https://chat.stackexchange.com",
		UserAgent:        "Mozilla/5.0 (compatible; automated) lightchat/0.1.0",
		HistoryDepth:     100,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      5 * time.Minute,
		ReconnectBase:    500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
	}
}
