// Package match turns fingerprint hash collisions into a verdict by voting
// over (song, time offset) hypotheses.
package match

import (
	"constella/internal/fingerprint"
	"constella/internal/model"
	"constella/internal/store"
)

// candidate is one (song, alignment) hypothesis being voted on.
type candidate struct {
	songID uint32
	offset int32
}

// Result is the outcome of a query. When Found is false no query hash
// collided with the store at all; that is a normal return, not a failure.
type Result struct {
	Found  bool
	SongID uint32
	Offset int32 // stored anchor time minus query anchor time, in frames
	Votes  int
}

// Query looks up every pairing of the query's fingerprint groups and tallies
// one vote per colliding posting under the (song, storedTime-queryTime) pair.
// The tally lives only for the duration of the call.
//
// The winner is the pair with the most votes. Ties are broken toward the
// lowest song ID, then the smallest offset, so results are deterministic even
// though the tally map iterates in arbitrary order.
func Query(groups []fingerprint.Group, st *store.Store) Result {
	tally := make(map[candidate]int)
	for _, group := range groups {
		for _, pairing := range group {
			for _, posting := range st.Lookup(pairing.Key) {
				c := candidate{
					songID: posting.SongID,
					offset: int32(posting.AnchorTime) - int32(pairing.AnchorTime),
				}
				tally[c]++
			}
		}
	}

	var best candidate
	bestVotes := 0
	for c, votes := range tally {
		if votes > bestVotes || (votes == bestVotes && beats(c, best)) {
			best = c
			bestVotes = votes
		}
	}
	if bestVotes == 0 {
		return Result{}
	}
	return Result{Found: true, SongID: best.songID, Offset: best.offset, Votes: bestVotes}
}

// beats reports whether a wins the tie against b.
func beats(a, b candidate) bool {
	if a.songID != b.songID {
		return a.songID < b.songID
	}
	return a.offset < b.offset
}

// Resolve maps a winning song ID to its catalog entry. A missing entry means
// the store and catalog came from different runs and is surfaced as
// model.ErrCatalogDesync rather than being swallowed.
func Resolve(res Result, catalog model.Catalog) (model.Song, error) {
	if !res.Found {
		return model.Song{}, nil
	}
	song, ok := catalog.Song(res.SongID)
	if !ok {
		return model.Song{}, model.ErrCatalogDesync
	}
	return song, nil
}
