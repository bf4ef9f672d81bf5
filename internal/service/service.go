// Package service wires the fingerprint pipeline, the in-memory index and the
// persistence backend behind a small request/response API: buffers in, match
// results out. It has no interactive surface of its own.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"constella/internal/audio"
	"constella/internal/fingerprint"
	"constella/internal/match"
	"constella/internal/model"
	"constella/internal/storage"
	"constella/internal/store"
	"constella/pkg/logger"
)

// Logger is the minimal logging surface the service needs; pkg/logger
// satisfies it, as does anything test code wants to inject.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Config collects the service's dependencies. Zero values fall back to the
// default pipeline, no persistence, and the default logger.
type Config struct {
	Pipeline fingerprint.Config
	Backend  storage.Backend
	Logger   Logger
}

type Option func(*Config)

func WithPipeline(cfg fingerprint.Config) Option {
	return func(c *Config) { c.Pipeline = cfg }
}

func WithBackend(b storage.Backend) Option {
	return func(c *Config) { c.Backend = b }
}

func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// MatchOutcome is the service-level result of a match call. Found false means
// no catalog song collided with the query at all.
type MatchOutcome struct {
	Found         bool
	Song          model.Song
	Votes         int
	Offset        int32   // alignment in frames; positive means the clip starts inside the song
	OffsetSeconds float64 // Offset converted via the pipeline's hop and the query's rate
}

// Service owns one store/catalog pair. Mutation (AddSong) and queries (Match)
// may run concurrently; the store serializes merges internally and the
// catalog has its own lock.
type Service struct {
	pipeline fingerprint.Config
	backend  storage.Backend
	log      Logger

	store *store.Store

	mu      sync.RWMutex
	catalog model.Catalog
}

// New builds a service, validating the pipeline configuration up front and
// restoring a snapshot from the backend when one is configured.
func New(opts ...Option) (*Service, error) {
	cfg := Config{Pipeline: fingerprint.DefaultConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	s := &Service{
		pipeline: cfg.Pipeline,
		backend:  cfg.Backend,
		log:      cfg.Logger,
		store:    store.New(),
	}
	if cfg.Backend != nil {
		st, catalog, err := cfg.Backend.Load(cfg.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("restoring snapshot: %w", err)
		}
		s.store = st
		s.catalog = catalog
		s.log.Infof("restored %d songs, %d fingerprint keys", len(catalog), st.Keys())
	}
	return s, nil
}

// Fingerprint runs the full pipeline on one buffer: spectrogram, peak
// extraction, fanout encoding.
func (s *Service) Fingerprint(ctx context.Context, buf *audio.SampleBuffer) ([]fingerprint.Group, error) {
	spec, err := fingerprint.BuildSpectrogram(buf.Samples, buf.Rate, s.pipeline)
	if err != nil {
		return nil, fmt.Errorf("building spectrogram: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	peaks, err := fingerprint.ExtractPeaks(spec, s.pipeline)
	if err != nil {
		return nil, fmt.Errorf("extracting peaks: %w", err)
	}
	s.log.Debugf("extracted %d peaks from %d frames", len(peaks), spec.Frames())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups, err := fingerprint.EncodeFingerprints(peaks, s.pipeline)
	if err != nil {
		return nil, fmt.Errorf("encoding fingerprints: %w", err)
	}
	return groups, nil
}

// AddSong fingerprints the buffer and registers it under the next dense song
// ID. The pipeline runs before any shared state changes, so a failed
// recording leaves store and catalog untouched.
func (s *Service) AddSong(ctx context.Context, name, artist string, buf *audio.SampleBuffer) (uint32, error) {
	groups, err := s.Fingerprint(ctx, buf)
	if err != nil {
		return 0, err
	}
	return s.Register(name, artist, groups), nil
}

// Register assigns the next dense song ID to already-computed fingerprint
// groups and merges them into the store. Indexers that fingerprint files in a
// worker pool call this from their collector so IDs stay dense.
func (s *Service) Register(name, artist string, groups []fingerprint.Group) uint32 {
	s.mu.Lock()
	id := uint32(len(s.catalog))
	s.catalog = append(s.catalog, model.Song{ID: id, Name: name, Artist: artist})
	s.mu.Unlock()

	s.store.Add(groups, id)
	s.log.Infof("added song %d: %s by %s (%d fingerprints)", id, name, artist, fingerprint.CountPairings(groups))
	return id
}

// Match fingerprints the query buffer and votes it against the store. A
// query that matches nothing returns Found false with a nil error.
func (s *Service) Match(ctx context.Context, buf *audio.SampleBuffer) (MatchOutcome, error) {
	groups, err := s.Fingerprint(ctx, buf)
	if err != nil {
		return MatchOutcome{}, err
	}

	res := match.Query(groups, s.store)
	if !res.Found {
		s.log.Infof("no match for query (%d fingerprints)", fingerprint.CountPairings(groups))
		return MatchOutcome{}, nil
	}

	s.mu.RLock()
	catalog := s.catalog
	s.mu.RUnlock()

	song, err := match.Resolve(res, catalog)
	if err != nil {
		return MatchOutcome{}, err
	}

	hop := s.pipeline.WindowSize - s.pipeline.WindowOverlap
	outcome := MatchOutcome{
		Found:         true,
		Song:          song,
		Votes:         res.Votes,
		Offset:        res.Offset,
		OffsetSeconds: float64(res.Offset) * float64(hop) / float64(buf.Rate),
	}
	s.log.Infof("matched song %d (%s by %s) with %d votes at offset %.2fs",
		song.ID, song.Name, song.Artist, res.Votes, outcome.OffsetSeconds)
	return outcome, nil
}

// Songs returns a copy of the catalog.
func (s *Service) Songs() model.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.Catalog, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Pipeline returns the validated pipeline configuration in use.
func (s *Service) Pipeline() fingerprint.Config { return s.pipeline }

// Save writes the current store and catalog through the backend.
func (s *Service) Save() error {
	if s.backend == nil {
		return errors.New("no storage backend configured")
	}
	s.mu.RLock()
	catalog := s.catalog
	s.mu.RUnlock()
	return s.backend.Save(s.store, catalog, s.pipeline)
}

// Close releases the backend, if any.
func (s *Service) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
