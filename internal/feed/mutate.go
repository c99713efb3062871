package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dailyrhapsody/diary/internal/diary"
)

type (
	// Draft is a new entry as submitted by the author.
	Draft struct {
		Date        string // Defaults to today
		PublishedAt string // RFC 3339, optional
		Pinned      bool
		Summary     string
		Tags        []string
		Images      []string
	}

	// Patch overwrites the non-nil fields of an entry. An empty PublishedAt
	// clears it.
	Patch struct {
		Date        *string
		PublishedAt *string
		Pinned      *bool
		Summary     *string
		Tags        *[]string
		Images      *[]string
	}
)

// Create assigns the next id, checks the pin invariant and persists the
// collection with the new entry in place.
func (s *Service) Create(ctx context.Context, d Draft) (diary.Entry, error) {
	if d.Date == "" {
		d.Date = s.now().In(s.loc).Format(diary.DateLayout)
	}
	entry := diary.Entry{
		Date:    d.Date,
		Pinned:  d.Pinned,
		Summary: s.sanitize(d.Summary),
		Tags:    normalizeTags(d.Tags),
		Images:  normalizeImages(d.Images),
	}
	if err := validateDate(entry.Date); err != nil {
		return diary.Entry{}, err
	}
	publishedAt, err := parsePublishedAt(d.PublishedAt)
	if err != nil {
		return diary.Entry{}, err
	}
	entry.PublishedAt = publishedAt

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return diary.Entry{}, err
	}
	last, err := s.store.LastEntryID(ctx)
	if err != nil {
		return diary.Entry{}, fmt.Errorf("error reading last entry id: %w", err)
	}
	entry.ID = nextID(entries, last)

	if entry.Pinned {
		if err := checkPin(entries, entry.ID); err != nil {
			return diary.Entry{}, err
		}
	}

	entries = slices.Insert(entries, 0, entry)
	if err := s.persist(ctx, entries); err != nil {
		return diary.Entry{}, err
	}
	slog.InfoContext(ctx, "created entry", "id", entry.ID, "pinned", entry.Pinned)

	return entry, nil
}

// Update merges p over the entry with the given id.
func (s *Service) Update(ctx context.Context, id int, p Patch) (diary.Entry, error) {
	if p.Date != nil {
		if err := validateDate(*p.Date); err != nil {
			return diary.Entry{}, err
		}
	}
	var publishedAt *time.Time
	if p.PublishedAt != nil {
		var err error
		if publishedAt, err = parsePublishedAt(*p.PublishedAt); err != nil {
			return diary.Entry{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return diary.Entry{}, err
	}
	i := slices.IndexFunc(entries, func(e diary.Entry) bool { return e.ID == id })
	if i == -1 {
		return diary.Entry{}, fmt.Errorf("entry %d: %w", id, diary.ErrNotFound)
	}

	updated := entries[i]
	if p.Date != nil {
		updated.Date = *p.Date
	}
	if p.PublishedAt != nil {
		updated.PublishedAt = publishedAt
	}
	if p.Pinned != nil {
		updated.Pinned = *p.Pinned
	}
	if p.Summary != nil {
		updated.Summary = s.sanitize(*p.Summary)
	}
	if p.Tags != nil {
		updated.Tags = normalizeTags(*p.Tags)
	}
	if p.Images != nil {
		updated.Images = normalizeImages(*p.Images)
	}

	if updated.Pinned {
		if err := checkPin(entries, id); err != nil {
			return diary.Entry{}, err
		}
	}

	entries[i] = updated
	if err := s.persist(ctx, entries); err != nil {
		return diary.Entry{}, err
	}
	slog.InfoContext(ctx, "updated entry", "id", id, "pinned", updated.Pinned)

	return updated, nil
}

// Delete removes the entry. Its comments are left in place.
func (s *Service) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(entries, func(e diary.Entry) bool { return e.ID == id })
	if i == -1 {
		return fmt.Errorf("entry %d: %w", id, diary.ErrNotFound)
	}

	if err := s.persist(ctx, slices.Delete(entries, i, i+1)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "deleted entry", "id", id)

	return nil
}

// persist sorts by stored times and writes the whole collection. Upstream
// publish times are never written back.
func (s *Service) persist(ctx context.Context, entries []diary.Entry) error {
	Sort(entries, s.loc)
	if err := s.store.ReplaceEntries(ctx, entries); err != nil {
		return fmt.Errorf("error persisting entries: %w", err)
	}

	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse(diary.DateLayout, date); err != nil {
		return fmt.Errorf("date %q must be YYYY-MM-DD: %w", date, diary.ErrInvalid)
	}
	return nil
}

func parsePublishedAt(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("publishedAt %q must be an RFC 3339 instant: %w", s, diary.ErrInvalid)
	}

	return &t, nil
}

// Only real markup is run through the sanitizer. Plain text, stray angle
// brackets included, is stored as given.
func (s *Service) sanitize(summary string) string {
	if !diary.HasMarkup(summary) {
		return summary
	}
	clean, err := s.sanitizer.SanitizeString(summary)
	if err != nil {
		slog.Warn("error sanitizing summary, storing it escaped", "error", err)
		return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(summary)
	}

	return clean
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}

	return out
}

func normalizeImages(images []string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}

	return out
}
