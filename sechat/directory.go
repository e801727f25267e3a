package sechat

import (
	"context"
	"net/url"
	"strconv"

	"github.com/seggan/lightchat/sechat/scrape"
)

// RoomSpec is one entry from the room directory listing.
type RoomSpec struct {
	ID   int64
	Name string
}

// ListRooms pages through the service's room directory and returns
// every listed room, deduplicated by id in order of first appearance.
// The listing endpoint needs no authentication.
func (s *WebSession) ListRooms(ctx context.Context) ([]RoomSpec, error) {
	form := url.Values{
		"tab":      {"all"},
		"sort":     {"active"},
		"filter":   {""},
		"pageSize": {"20"},
		"page":     {"1"},
	}
	first, err := s.postFormBody(ctx, s.cfg.ChatURL+"/rooms", form)
	if err != nil {
		return nil, err
	}
	pages := scrape.PageCount(first)

	var rooms []RoomSpec
	seen := make(map[int64]bool)
	appendPage := func(page string) error {
		links, err := scrape.RoomLinks(page)
		if err != nil {
			return WrapError(ErrorDecode, "room listing page", err)
		}
		for _, link := range links {
			if seen[link.ID] {
				continue
			}
			seen[link.ID] = true
			rooms = append(rooms, RoomSpec{ID: link.ID, Name: link.Name})
		}
		return nil
	}

	if err := appendPage(first); err != nil {
		return nil, err
	}
	for page := 2; page <= pages; page++ {
		form.Set("page", strconv.Itoa(page))
		body, err := s.postFormBody(ctx, s.cfg.ChatURL+"/rooms", form)
		if err != nil {
			return nil, err
		}
		if err := appendPage(body); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}
