// Package scrape extracts the handful of values the chat client needs
// from service HTML pages: the session token, the numeric user
// identity, and the room directory listing. Selectors here track the
// service's markup; everything else treats these as opaque functions.
package scrape

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ErrNotFound is returned when the expected markup is absent, which
// usually means the page shape changed or the session is invalid.
var ErrNotFound = errors.New("scrape: expected element not found")

// Fkey returns the value of the page's <input name="fkey">.
func Fkey(page string) (string, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	var fkey string
	found := find(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "input" || attr(n, "name") != "fkey" {
			return false
		}
		fkey = attr(n, "value")
		return true
	})
	if !found || fkey == "" {
		return "", ErrNotFound
	}
	return fkey, nil
}

// UserID extracts the numeric user id from the topbar of an
// authenticated chat page: the first profile link under the element
// with class "topbar-menu-links" has an href of the form
// "/users/<id>/<slug>".
func UserID(page string) (int64, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return 0, err
	}
	var id int64
	found := find(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || !hasClass(n, "topbar-menu-links") {
			return false
		}
		return find(n, func(a *html.Node) bool {
			if a.Type != html.ElementNode || a.Data != "a" {
				return false
			}
			parsed, ok := idFromHref(attr(a, "href"))
			id = parsed
			return ok
		})
	})
	if !found {
		return 0, ErrNotFound
	}
	return id, nil
}

// Title returns the text of the document's <title> element.
func Title(page string) (string, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	var title string
	found := find(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "title" {
			return false
		}
		title = text(n)
		return true
	})
	if !found {
		return "", ErrNotFound
	}
	return title, nil
}

// PageCount returns the highest page number shown by the directory's
// pagination controls (elements with class "page-numbers"). A page
// without controls is a single page.
func PageCount(page string) int {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return 1
	}
	max := 1
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "page-numbers") {
			return
		}
		if v, err := strconv.Atoi(strings.TrimSpace(text(n))); err == nil && v > max {
			max = v
		}
	})
	return max
}

// RoomLink is one room entry scraped from the directory listing.
type RoomLink struct {
	ID   int64
	Name string
}

// RoomLinks returns the rooms listed on a directory page: each anchor
// under an element with class "room-name", with the id taken from the
// "/rooms/<id>/<slug>" href and the name from the link text.
func RoomLinks(page string) ([]RoomLink, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	var links []RoomLink
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "room-name") {
			return
		}
		walk(n, func(a *html.Node) {
			if a.Type != html.ElementNode || a.Data != "a" {
				return
			}
			id, ok := idFromHref(attr(a, "href"))
			if !ok {
				return
			}
			links = append(links, RoomLink{ID: id, Name: strings.TrimSpace(text(a))})
		})
	})
	return links, nil
}

// idFromHref parses hrefs of the form "/users/123/name" or
// "/rooms/123/name", taking the numeric second segment.
func idFromHref(href string) (int64, bool) {
	parts := strings.Split(href, "/")
	if len(parts) < 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// walk visits every node in the tree rooted at n.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// find visits nodes until match returns true.
func find(n *html.Node, match func(*html.Node) bool) bool {
	if match(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if find(c, match) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}
