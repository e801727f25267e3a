package scrape

import (
	"errors"
	"testing"
)

func TestFkey(t *testing.T) {
	page := `<html><body><form>
		<input type="hidden" name="fkey" value="0123456789abcdef"/>
	</form></body></html>`
	fkey, err := Fkey(page)
	if err != nil {
		t.Fatalf("Fkey failed: %v", err)
	}
	if fkey != "0123456789abcdef" {
		t.Fatalf("fkey = %q", fkey)
	}
}

func TestFkeyMissing(t *testing.T) {
	for _, page := range []string{
		`<html><body></body></html>`,
		`<html><body><input name="fkey"/></body></html>`, // no value
	} {
		if _, err := Fkey(page); !errors.Is(err, ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	}
}

func TestUserID(t *testing.T) {
	page := `<html><body>
		<div class="topbar-links topbar-menu-links">
			<a href="/users/526756/seggan">Seggan</a>
			<a href="/help">help</a>
		</div>
	</body></html>`
	id, err := UserID(page)
	if err != nil {
		t.Fatalf("UserID failed: %v", err)
	}
	if id != 526756 {
		t.Fatalf("id = %d, want 526756", id)
	}
}

func TestUserIDMissing(t *testing.T) {
	if _, err := UserID(`<html><body><a href="/users/1/x">x</a></body></html>`); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestTitle(t *testing.T) {
	title, err := Title(`<html><head><title>Human verification - Meta</title></head></html>`)
	if err != nil {
		t.Fatalf("Title failed: %v", err)
	}
	if title != "Human verification - Meta" {
		t.Fatalf("title = %q", title)
	}
}

func TestPageCount(t *testing.T) {
	page := `<html><body>
		<a class="page-numbers">1</a>
		<a class="page-numbers">2</a>
		<a class="page-numbers">14</a>
		<a class="page-numbers next">next</a>
	</body></html>`
	if got := PageCount(page); got != 14 {
		t.Fatalf("pages = %d, want 14", got)
	}
	if got := PageCount(`<html><body>no pagination</body></html>`); got != 1 {
		t.Fatalf("pages = %d, want 1", got)
	}
}

func TestRoomLinks(t *testing.T) {
	page := `<html><body>
		<div class="room-name"><a href="/rooms/1/sandbox">Sandbox</a></div>
		<div class="room-name"><a href="/rooms/240/the-nineteenth-byte">The Nineteenth Byte</a></div>
		<div class="room-name"><a href="/info">not a room</a></div>
	</body></html>`
	links, err := RoomLinks(page)
	if err != nil {
		t.Fatalf("RoomLinks failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("%d links, want 2", len(links))
	}
	if links[0] != (RoomLink{ID: 1, Name: "Sandbox"}) {
		t.Fatalf("first link = %+v", links[0])
	}
	if links[1] != (RoomLink{ID: 240, Name: "The Nineteenth Byte"}) {
		t.Fatalf("second link = %+v", links[1])
	}
}
