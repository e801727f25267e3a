package sechat

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// cookieJar wraps net/http/cookiejar with a record of every SetCookies
// call, so the jar content can round-trip through an opaque blob. The
// standard jar cannot enumerate its entries, and cookie persistence is
// required for the skip-credential login path.
type cookieJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string][]*http.Cookie // keyed by cookie-setting URL
}

func newCookieJar() (*cookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &cookieJar{jar: jar, entries: make(map[string][]*http.Cookie)}, nil
}

// SetCookies implements http.CookieJar.
func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	key := u.Scheme + "://" + u.Host
	j.entries[key] = mergeCookies(j.entries[key], cookies)
	j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *cookieJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// has reports whether the jar would send a cookie with the given name
// to the given URL.
func (j *cookieJar) has(u *url.URL, name string) bool {
	for _, c := range j.Cookies(u) {
		if c.Name == name {
			return true
		}
	}
	return false
}

// export serializes the recorded entries to an opaque JSON blob.
func (j *cookieJar) export() ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.Marshal(j.entries)
}

// load replays a previously exported blob into the jar.
func (j *cookieJar) load(blob []byte) error {
	var entries map[string][]*http.Cookie
	if err := json.Unmarshal(blob, &entries); err != nil {
		return err
	}
	for key, cookies := range entries {
		u, err := url.Parse(key)
		if err != nil {
			continue
		}
		j.SetCookies(u, cookies)
	}
	return nil
}

// mergeCookies replaces existing entries by name and appends new ones,
// keeping one record per cookie name.
func mergeCookies(existing, incoming []*http.Cookie) []*http.Cookie {
	for _, in := range incoming {
		replaced := false
		for i, old := range existing {
			if old.Name == in.Name {
				existing[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, in)
		}
	}
	return existing
}
