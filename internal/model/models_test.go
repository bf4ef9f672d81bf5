package model

import (
	"reflect"
	"testing"
)

func TestCatalogSong(t *testing.T) {
	c := Catalog{
		{ID: 0, Name: "alpha", Artist: "one"},
		{ID: 1, Name: "beta", Artist: "two"},
	}

	song, ok := c.Song(1)
	if !ok || song.Name != "beta" {
		t.Errorf("Song(1) = %+v, %v", song, ok)
	}
	if _, ok := c.Song(2); ok {
		t.Error("Song(2) resolved against a two-entry catalog")
	}
	if _, ok := Catalog(nil).Song(0); ok {
		t.Error("Song(0) resolved against an empty catalog")
	}
}

func TestCatalogArtists(t *testing.T) {
	c := Catalog{
		{ID: 0, Name: "a", Artist: "one"},
		{ID: 1, Name: "b", Artist: "two"},
		{ID: 2, Name: "c", Artist: "one"},
	}
	if got, want := c.Artists(), []string{"one", "two"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Artists = %v, want %v", got, want)
	}
}
