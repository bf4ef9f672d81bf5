// Package store holds the in-memory inverted index at the heart of the
// matcher: fingerprint key -> postings of (song ID, anchor time).
package store

import (
	"encoding/binary"
	"sync"

	"github.com/OneOfOne/xxhash"

	"constella/internal/fingerprint"
	"constella/internal/model"
)

const defaultShards = 64

type shard struct {
	mu sync.RWMutex
	m  map[fingerprint.Key][]model.Posting
}

// Store is an append-only inverted index sharded by a hash of the key so
// concurrent queries do not contend on a single lock. Postings under one key
// keep insertion order; there is no deduplication.
type Store struct {
	shards []shard
}

// New returns an empty store.
func New() *Store {
	s := &Store{shards: make([]shard, defaultShards)}
	for i := range s.shards {
		s.shards[i].m = make(map[fingerprint.Key][]model.Posting)
	}
	return s
}

func (s *Store) shardFor(k fingerprint.Key) *shard {
	return &s.shards[s.shardIndex(k)]
}

// Add merges one song's fingerprint groups into the index. Entries are staged
// into per-shard buffers first and the merge takes every shard's write lock
// before touching the maps, so a concurrent reader either sees none of the
// song or all of it.
func (s *Store) Add(groups []fingerprint.Group, songID uint32) {
	staged := s.stage(groups, songID)

	for i := range s.shards {
		s.shards[i].mu.Lock()
	}
	defer func() {
		for i := range s.shards {
			s.shards[i].mu.Unlock()
		}
	}()

	for i, buf := range staged {
		m := s.shards[i].m
		for k, postings := range buf {
			m[k] = append(m[k], postings...)
		}
	}
}

// stage buckets a song's entries by destination shard without locking.
// Iterating groups in anchor order keeps per-key insertion order stable.
func (s *Store) stage(groups []fingerprint.Group, songID uint32) []map[fingerprint.Key][]model.Posting {
	staged := make([]map[fingerprint.Key][]model.Posting, len(s.shards))
	for _, group := range groups {
		for _, p := range group {
			idx := s.shardIndex(p.Key)
			if staged[idx] == nil {
				staged[idx] = make(map[fingerprint.Key][]model.Posting)
			}
			staged[idx][p.Key] = append(staged[idx][p.Key], model.Posting{
				SongID:     songID,
				AnchorTime: p.AnchorTime,
			})
		}
	}
	return staged
}

func (s *Store) shardIndex(k fingerprint.Key) int {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], k.F1)
	binary.BigEndian.PutUint32(buf[4:8], k.F2)
	binary.BigEndian.PutUint32(buf[8:12], k.DT)
	return int(xxhash.Checksum64(buf[:]) % uint64(len(s.shards)))
}

// Lookup returns the postings stored under k. A missing key yields an empty
// result, never an error: most query hashes match nothing and that is the
// expected case. The returned slice must not be mutated.
func (s *Store) Lookup(k fingerprint.Key) []model.Posting {
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.m[k]
}

// Append restores postings under a key without staging; the persistence layer
// uses it when loading a snapshot. Not safe against concurrent readers.
func (s *Store) Append(k fingerprint.Key, postings ...model.Posting) {
	sh := s.shardFor(k)
	sh.m[k] = append(sh.m[k], postings...)
}

// Walk visits every key with its postings, one shard at a time under a read
// lock. Iteration order is unspecified; fn must not call back into the store.
func (s *Store) Walk(fn func(k fingerprint.Key, postings []model.Posting) error) error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k, postings := range sh.m {
			if err := fn(k, postings); err != nil {
				sh.mu.RUnlock()
				return err
			}
		}
		sh.mu.RUnlock()
	}
	return nil
}

// Keys returns the number of distinct fingerprint keys.
func (s *Store) Keys() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// Postings returns the total number of stored postings.
func (s *Store) Postings() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, p := range sh.m {
			n += len(p)
		}
		sh.mu.RUnlock()
	}
	return n
}
