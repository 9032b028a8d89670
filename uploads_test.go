package main

import "testing"

func TestItemPhotoObjectKey(t *testing.T) {
	key := itemPhotoObjectKey(3, 9, 42)
	if key != "stores/3/checklists/9/items/42.jpg" {
		t.Fatalf("object key = %q", key)
	}
	// Same item always maps to the same key, so re-uploads overwrite.
	if again := itemPhotoObjectKey(3, 9, 42); again != key {
		t.Fatalf("key is not stable: %q vs %q", key, again)
	}
}

func TestThumbnailObjectKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"stores/3/checklists/9/items/42.jpg", "stores/3/checklists/9/items/thumbnails/42.jpg"},
		{"42.jpg", "thumbnails/42.jpg"},
	}
	for _, c := range cases {
		if got := thumbnailObjectKey(c.in); got != c.want {
			t.Fatalf("thumbnailObjectKey(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}
