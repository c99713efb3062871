// Package feed assembles the diary feed: it merges stored entries with
// upstream publish times, orders them, pages through them and guards the
// single pinned entry on every write.
package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sym01/htmlsanitizer"

	"github.com/dailyrhapsody/diary/internal/diary"
)

// TimestampSource supplies authoritative publish times keyed by entry id.
type TimestampSource interface {
	PublishTimes(ctx context.Context) (map[int]time.Time, error)
}

type (
	Config struct {
		// Dates are read as noon in this location. Defaults to time.Local.
		Location *time.Location
		// Upper bound on waiting for the timestamp source.
		EnrichTimeout time.Duration
		// Served until the store has persisted anything.
		Seed []diary.Entry
		// Defaults to time.Now.
		Now func() time.Time
	}

	// Service is the feed. All writes go through a single lock so the
	// read-modify-write of the whole collection and the pin check happen
	// as one step.
	Service struct {
		mu sync.Mutex

		store  diary.EntryStore
		source TimestampSource

		seed          []diary.Entry
		loc           *time.Location
		enrichTimeout time.Duration
		now           func() time.Time
		sanitizer     *htmlsanitizer.HTMLSanitizer
	}
)

// New creates the feed service. source may be nil, in which case entries
// are served with their stored times only.
func New(store diary.EntryStore, source TimestampSource, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 3 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:         store,
		source:        source,
		seed:          cfg.Seed,
		loc:           cfg.Location,
		enrichTimeout: cfg.EnrichTimeout,
		now:           cfg.Now,
		sanitizer:     htmlsanitizer.NewHTMLSanitizer(),
	}
}

// All returns the whole ordered collection.
func (s *Service) All(ctx context.Context) ([]diary.Entry, error) {
	return s.ordered(ctx)
}

// Page returns one page of the ordered, optionally tag filtered, collection.
func (s *Service) Page(ctx context.Context, q PageQuery) (Page, error) {
	entries, err := s.ordered(ctx)
	if err != nil {
		return Page{}, err
	}

	return paginate(entries, q.normalized()), nil
}

// Entry returns a single entry with its merged publish time.
func (s *Service) Entry(ctx context.Context, id int) (diary.Entry, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return diary.Entry{}, err
	}

	i := slices.IndexFunc(entries, func(e diary.Entry) bool { return e.ID == id })
	if i == -1 {
		return diary.Entry{}, fmt.Errorf("entry %d: %w", id, diary.ErrNotFound)
	}

	return s.fetchTimes(ctx).apply(entries[i : i+1])[0], nil
}

// ordered loads, enriches and sorts. Both the full listing and pages use this
// so they agree on order.
func (s *Service) ordered(ctx context.Context) ([]diary.Entry, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	entries = s.fetchTimes(ctx).apply(entries)
	Sort(entries, s.loc)

	return entries, nil
}

func (s *Service) load(ctx context.Context) ([]diary.Entry, error) {
	entries, err := s.store.Entries(ctx, s.seed)
	if err != nil {
		return nil, fmt.Errorf("error loading entries: %w", err)
	}

	return entries, nil
}
