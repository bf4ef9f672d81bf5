package model

import "errors"

// ErrCatalogDesync is returned when a song ID coming out of the fingerprint
// store has no corresponding catalog entry. It means the store and the catalog
// were built from different indexing runs and the pair cannot be trusted.
var ErrCatalogDesync = errors.New("fingerprint store and song catalog are out of sync")

// Song is one catalog entry. IDs are dense and zero-based: the song with ID k
// is the k-th entry of the catalog.
type Song struct {
	ID     uint32
	Name   string
	Artist string
}

// Posting is one stored value under a fingerprint key: the song the hash
// occurred in and the frame index of the anchor peak within that song.
type Posting struct {
	SongID     uint32
	AnchorTime uint32
}

// Catalog maps dense song IDs to metadata. Index k holds the song with ID k.
type Catalog []Song

// Song resolves an ID against the catalog. The second return is false when the
// ID has no entry, which callers must treat as a desync, not a miss.
func (c Catalog) Song(id uint32) (Song, bool) {
	if int(id) >= len(c) {
		return Song{}, false
	}
	return c[id], true
}

// Artists returns the distinct artist names in first-seen order.
func (c Catalog) Artists() []string {
	seen := make(map[string]struct{}, len(c))
	artists := make([]string, 0, len(c))
	for _, s := range c {
		if _, ok := seen[s.Artist]; ok {
			continue
		}
		seen[s.Artist] = struct{}{}
		artists = append(artists, s.Artist)
	}
	return artists
}
