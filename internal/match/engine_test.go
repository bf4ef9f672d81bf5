package match

import (
	"errors"
	"math"
	"testing"

	"constella/internal/fingerprint"
	"constella/internal/model"
	"constella/internal/store"
)

func encodeConfig() fingerprint.Config {
	return fingerprint.Config{
		WindowSize:             1024,
		WindowOverlap:          512,
		NeighborhoodIterations: 2,
		AmpThresholdPct:        0.8,
		FanoutSize:             5,
	}
}

// risingPeaks returns peaks whose pairings all produce distinct keys, so a
// query against the same material votes once per pairing.
func risingPeaks(n, timeShift int) []fingerprint.Peak {
	peaks := make([]fingerprint.Peak, n)
	for i := range peaks {
		peaks[i] = fingerprint.Peak{Freq: i, Time: 2*i + timeShift}
	}
	return peaks
}

func TestQueryRoundTrip(t *testing.T) {
	cfg := encodeConfig()
	stored, err := fingerprint.EncodeFingerprints(risingPeaks(40, 0), cfg)
	if err != nil {
		t.Fatalf("EncodeFingerprints: %v", err)
	}

	st := store.New()
	st.Add(stored, 7)

	res := Query(stored, st)
	if !res.Found {
		t.Fatal("query against its own song found nothing")
	}
	if res.SongID != 7 {
		t.Errorf("SongID = %d, want 7", res.SongID)
	}
	if res.Offset != 0 {
		t.Errorf("Offset = %d, want 0", res.Offset)
	}
	if want := fingerprint.CountPairings(stored); res.Votes != want {
		t.Errorf("Votes = %d, want %d (one per pairing)", res.Votes, want)
	}
}

func TestQueryRecoversOffset(t *testing.T) {
	cfg := encodeConfig()
	stored, err := fingerprint.EncodeFingerprints(risingPeaks(40, 0), cfg)
	if err != nil {
		t.Fatalf("EncodeFingerprints: %v", err)
	}
	// the same peak constellation observed 13 frames later in the query
	query, err := fingerprint.EncodeFingerprints(risingPeaks(40, 13), cfg)
	if err != nil {
		t.Fatalf("EncodeFingerprints: %v", err)
	}

	st := store.New()
	st.Add(stored, 1)

	res := Query(query, st)
	if !res.Found {
		t.Fatal("shifted query found nothing")
	}
	if res.Offset != -13 {
		t.Errorf("Offset = %d, want -13", res.Offset)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	cfg := encodeConfig()
	query, err := fingerprint.EncodeFingerprints(risingPeaks(10, 0), cfg)
	if err != nil {
		t.Fatalf("EncodeFingerprints: %v", err)
	}

	res := Query(query, store.New())
	if res.Found {
		t.Errorf("empty store produced result %+v", res)
	}
	if res.Votes != 0 {
		t.Errorf("Votes = %d, want 0", res.Votes)
	}
}

func TestQueryTieBreaksOnLowestSongID(t *testing.T) {
	k := fingerprint.Key{F1: 2, F2: 5, DT: 1}
	query := []fingerprint.Group{{{Key: k, AnchorTime: 0}}}

	st := store.New()
	// two songs collide with identical vote counts
	st.Append(k,
		model.Posting{SongID: 9, AnchorTime: 4},
		model.Posting{SongID: 3, AnchorTime: 4},
	)

	res := Query(query, st)
	if !res.Found || res.SongID != 3 {
		t.Errorf("got %+v, want song 3 to win the tie", res)
	}
}

func TestQueryTieBreaksOnSmallestOffset(t *testing.T) {
	k := fingerprint.Key{F1: 2, F2: 5, DT: 1}
	query := []fingerprint.Group{{{Key: k, AnchorTime: 10}}}

	st := store.New()
	st.Append(k,
		model.Posting{SongID: 3, AnchorTime: 30},
		model.Posting{SongID: 3, AnchorTime: 5},
	)

	res := Query(query, st)
	if !res.Found || res.SongID != 3 {
		t.Fatalf("got %+v, want song 3", res)
	}
	if res.Offset != -5 {
		t.Errorf("Offset = %d, want -5 (smallest offset wins the tie)", res.Offset)
	}
}

func TestQueryMajorityBeatsMinority(t *testing.T) {
	cfg := encodeConfig()
	songA, err := fingerprint.EncodeFingerprints(risingPeaks(40, 0), cfg)
	if err != nil {
		t.Fatalf("EncodeFingerprints: %v", err)
	}
	songB, err := fingerprint.EncodeFingerprints([]fingerprint.Peak{
		{Freq: 0, Time: 0}, {Freq: 1, Time: 2}, {Freq: 2, Time: 4},
	}, cfg)
	if err != nil {
		t.Fatalf("EncodeFingerprints: %v", err)
	}

	st := store.New()
	st.Add(songA, 1)
	st.Add(songB, 2)

	// song B's keys are a prefix of song A's constellation, so a full query
	// collides with both; song A collects far more aligned votes
	res := Query(songA, st)
	if !res.Found || res.SongID != 1 {
		t.Errorf("got %+v, want the fully matching song 1", res)
	}
}

func TestResolve(t *testing.T) {
	catalog := model.Catalog{
		{ID: 0, Name: "first", Artist: "a"},
		{ID: 1, Name: "second", Artist: "b"},
	}

	song, err := Resolve(Result{Found: true, SongID: 1, Votes: 4}, catalog)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if song.Name != "second" {
		t.Errorf("resolved %+v, want the second entry", song)
	}

	if _, err := Resolve(Result{Found: true, SongID: 5, Votes: 4}, catalog); !errors.Is(err, model.ErrCatalogDesync) {
		t.Errorf("got error %v, want ErrCatalogDesync", err)
	}

	song, err = Resolve(Result{}, catalog)
	if err != nil {
		t.Fatalf("Resolve of a no-match: %v", err)
	}
	if song != (model.Song{}) {
		t.Errorf("no-match resolved to %+v", song)
	}
}

func TestQueryOffsetMath(t *testing.T) {
	// stored anchor earlier than the query anchor yields a negative offset
	// without wrapping through uint32 arithmetic
	k := fingerprint.Key{F1: 1, F2: 2, DT: 3}
	query := []fingerprint.Group{{{Key: k, AnchorTime: math.MaxInt16}}}

	st := store.New()
	st.Append(k, model.Posting{SongID: 1, AnchorTime: 0})

	res := Query(query, st)
	if res.Offset != -math.MaxInt16 {
		t.Errorf("Offset = %d, want %d", res.Offset, -math.MaxInt16)
	}
}
