package sechat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/seggan/lightchat/sechat/scrape"
)

// captchaMarker appears in the profile page title when the service
// wants human verification before letting the login through.
const captchaMarker = "Human verification"

// loginOK is the literal body the credential endpoint returns on
// success; anything else is the failure detail.
const loginOK = "Login-OK"

// WebSession owns the HTTP client, cookie jar, session token and user
// identity needed to make authenticated requests. The token and
// identity are either both absent (before Login) or both present; they
// are written only by the login handshake.
type WebSession struct {
	cfg        Config
	logger     Logger
	jar        *cookieJar
	httpClient *http.Client

	mu     sync.RWMutex
	fkey   string
	userID int64
}

// NewWebSession constructs an unauthenticated session.
func NewWebSession(cfg Config) (*WebSession, error) {
	if cfg.FkeyFunc == nil {
		cfg.FkeyFunc = scrape.Fkey
	}
	if cfg.UserIDFunc == nil {
		cfg.UserIDFunc = scrape.UserID
	}
	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	return &WebSession{
		cfg:        cfg,
		logger:     noopLogger{},
		jar:        jar,
		httpClient: &http.Client{Jar: jar},
	}, nil
}

// SetLogger overrides the logger (optional).
func (s *WebSession) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// ImportCookies replays a previously exported cookie blob into the
// jar. Call before Login to reuse a persisted site session.
func (s *WebSession) ImportCookies(blob []byte) error {
	return s.jar.load(blob)
}

// ExportCookies serializes the jar to an opaque blob.
func (s *WebSession) ExportCookies() ([]byte, error) {
	return s.jar.export()
}

// Authenticated reports whether the login handshake has completed.
func (s *WebSession) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fkey != "" && s.userID != 0
}

// Fkey returns the chat session token, or "" before login.
func (s *WebSession) Fkey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fkey
}

// UserID returns the numeric user identity, or 0 before login.
func (s *WebSession) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// NeedsCredentials reports whether Login will have to run the
// credential exchange, i.e. the jar does not carry the site-wide
// session cookie. Callers use this to decide whether to prompt for a
// password.
func (s *WebSession) NeedsCredentials() bool {
	siteURL, err := url.Parse(s.cfg.SiteURL)
	if err != nil {
		return true
	}
	return !s.jar.has(siteURL, "acct")
}

// Login performs the authentication handshake. If the jar already
// carries the site-wide session cookie the credential exchange is
// skipped and only the chat token and identity are resolved. On a
// fresh credential exchange the Config.SaveCookies callback (when set)
// receives the updated jar blob.
func (s *WebSession) Login(ctx context.Context, email, password string) error {
	siteURL, err := url.Parse(s.cfg.SiteURL)
	if err != nil {
		return WrapError(ErrorBadResponse, "invalid site URL", err)
	}

	if !s.jar.has(siteURL, "acct") {
		if err := s.exchangeCredentials(ctx, email, password); err != nil {
			return err
		}
		if s.cfg.SaveCookies != nil {
			blob, err := s.jar.export()
			if err == nil {
				err = s.cfg.SaveCookies(blob)
			}
			if err != nil {
				s.logger.Warn("failed to persist cookies", map[string]any{"error": err.Error()})
			}
		}
	} else {
		s.logger.Debug("site session cookie present, skipping credential exchange", nil)
	}

	// The main site accepted us; now resolve the chat-scoped token and
	// the numeric identity. Failures here mean the credentials are not
	// valid for the chat subsystem (or the page shape changed).
	page, err := s.getPage(ctx, s.cfg.ChatURL+"/chats/join/favorite")
	if err != nil {
		return err
	}
	fkey, err := s.cfg.FkeyFunc(page)
	if err != nil {
		return WrapError(ErrorBadCredentials, "no chat session token on favorites page", err)
	}
	userID, err := s.cfg.UserIDFunc(page)
	if err != nil {
		return WrapError(ErrorBadCredentials, "no user identity on favorites page", err)
	}

	s.mu.Lock()
	s.fkey = fkey
	s.userID = userID
	s.mu.Unlock()
	s.logger.Info("logged in", map[string]any{"user_id": userID})
	return nil
}

// exchangeCredentials runs the credential half of the handshake:
// scrape a one-time token from the login page, submit the credentials,
// then load the profile page and check for the captcha challenge.
func (s *WebSession) exchangeCredentials(ctx context.Context, email, password string) error {
	page, err := s.getPage(ctx, s.cfg.SiteURL+"/users/login")
	if err != nil {
		return err
	}
	fkey, err := s.cfg.FkeyFunc(page)
	if err != nil {
		return WrapError(ErrorLoginFailed, "no fkey on login page", err)
	}

	body, err := s.postFormBody(ctx, s.cfg.SiteURL+"/users/login-or-signup/validation/track", url.Values{
		"email":        {email},
		"password":     {password},
		"fkey":         {fkey},
		"isSignup":     {"false"},
		"isLogin":      {"true"},
		"isPassword":   {"false"},
		"isAddLogin":   {"false"},
		"hasCaptcha":   {"false"},
		"ssrc":         {"head"},
		"submitButton": {"Log in"},
	})
	if err != nil {
		return err
	}
	if body != loginOK {
		return NewError(ErrorLoginFailed, fmt.Sprintf("site login failed: %s", body))
	}

	profile, err := s.postFormBody(ctx, s.cfg.SiteURL+"/users/login", url.Values{
		"email":    {email},
		"password": {password},
		"fkey":     {fkey},
		"ssrc":     {"head"},
	})
	if err != nil {
		return err
	}
	if title, err := scrape.Title(profile); err == nil && strings.Contains(title, captchaMarker) {
		return NewError(ErrorCaptchaRequired, "captcha required, retry in a few minutes")
	}
	return nil
}

// AuthenticatedPost injects the session token into the form and issues
// the POST with a Referer header naming the room context. An HTTP 409
// is a rate limit; any other non-2xx status is a bad response.
func (s *WebSession) AuthenticatedPost(ctx context.Context, postURL string, form url.Values, roomID int64) ([]byte, error) {
	s.mu.RLock()
	fkey := s.fkey
	userID := s.userID
	s.mu.RUnlock()
	if fkey == "" || userID == 0 {
		return nil, NewError(ErrorNotAuthenticated, "login has not completed")
	}

	if form == nil {
		form = url.Values{}
	}
	form.Set("fkey", fkey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, WrapError(ErrorTransport, "create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if roomID != 0 {
		req.Header.Set("Referer", fmt.Sprintf("%s/rooms/%d", s.cfg.ChatURL, roomID))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(ErrorTransport, "post "+postURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(ErrorTransport, "read response", err)
	}
	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, NewError(ErrorRateLimited, "service rejected the request with 409")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ChatError{
			Code:    ErrorBadResponse,
			Message: string(body),
			Status:  resp.StatusCode,
		}
	}
	return body, nil
}

// getPage fetches a page as text with the configured user agent.
func (s *WebSession) getPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", WrapError(ErrorTransport, "create request", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", WrapError(ErrorTransport, "get "+pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapError(ErrorTransport, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ChatError{Code: ErrorBadResponse, Message: string(body), Status: resp.StatusCode}
	}
	return string(body), nil
}

// postFormBody issues an unauthenticated form POST and returns the
// body as text. Used only by the login handshake, before a token
// exists.
func (s *WebSession) postFormBody(ctx context.Context, postURL string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", WrapError(ErrorTransport, "create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", WrapError(ErrorTransport, "post "+postURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapError(ErrorTransport, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ChatError{Code: ErrorBadResponse, Message: string(body), Status: resp.StatusCode}
	}
	return string(body), nil
}
