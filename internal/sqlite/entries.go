package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dailyrhapsody/diary/internal/diary"
)

const (
	lastEntryIDKey = "last_entry_id"

	// Keeps each insert well under sqlite's bound parameter limit.
	insertBatchSize = 500
)

var entryColumns = []string{"id", "position", "date", "published_at", "pinned", "summary", "tags", "images"}

type entryRow struct {
	ID          int            `db:"id"`
	Position    int            `db:"position"`
	Date        string         `db:"date"`
	PublishedAt sql.NullString `db:"published_at"`
	Pinned      bool           `db:"pinned"`
	Summary     string         `db:"summary"`
	Tags        string         `db:"tags"`
	Images      string         `db:"images"`
}

func (row entryRow) entry() (diary.Entry, error) {
	e := diary.Entry{
		ID:      row.ID,
		Date:    row.Date,
		Pinned:  row.Pinned,
		Summary: row.Summary,
		Tags:    []string{},
		Images:  []string{},
	}
	if row.PublishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, row.PublishedAt.String)
		if err != nil {
			return diary.Entry{}, fmt.Errorf("error parsing published_at of entry %d: %s", row.ID, err)
		}
		e.PublishedAt = &t
	}
	if err := json.Unmarshal([]byte(row.Tags), &e.Tags); err != nil {
		return diary.Entry{}, fmt.Errorf("error decoding tags of entry %d: %s", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Images), &e.Images); err != nil {
		return diary.Entry{}, fmt.Errorf("error decoding images of entry %d: %s", row.ID, err)
	}

	return e, nil
}

func rowValues(position int, e diary.Entry) ([]any, error) {
	tags, err := json.Marshal(nonNil(e.Tags))
	if err != nil {
		return nil, err
	}
	images, err := json.Marshal(nonNil(e.Images))
	if err != nil {
		return nil, err
	}
	var publishedAt sql.NullString
	if e.PublishedAt != nil {
		publishedAt = sql.NullString{String: e.PublishedAt.Format(time.RFC3339Nano), Valid: true}
	}

	return []any{e.ID, position, e.Date, publishedAt, e.Pinned, e.Summary, string(tags), string(images)}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Entries returns the stored collection in the order it was written.
//
// The seed is returned only while nothing has ever been persisted. An empty
// collection left behind by deletes is returned as empty, not as the seed.
func (r Repo) Entries(ctx context.Context, seed []diary.Entry) ([]diary.Entry, error) {
	persisted, err := r.persisted(ctx)
	if err != nil {
		return nil, err
	}
	if !persisted {
		return append([]diary.Entry{}, seed...), nil
	}

	const q = `SELECT * FROM entries ORDER BY position ASC;`
	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("error selecting entries: %w", err)
	}

	entries := make([]diary.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func (r Repo) persisted(ctx context.Context) (bool, error) {
	const q = `SELECT COUNT(*) FROM entry_meta WHERE key = ?;`

	var count int
	if err := r.db.GetContext(ctx, &count, q, lastEntryIDKey); err != nil {
		return false, fmt.Errorf("error checking entry meta: %w", err)
	}

	return count > 0, nil
}

// ReplaceEntries overwrites the whole collection inside one transaction.
// A failure part way leaves the previous collection in place.
func (r Repo) ReplaceEntries(ctx context.Context, entries []diary.Entry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries;`); err != nil {
		return fmt.Errorf("error clearing entries: %w", err)
	}

	maxID := 0
	for start := 0; start < len(entries); start += insertBatchSize {
		end := min(start+insertBatchSize, len(entries))

		q := sq.Insert("entries").Columns(entryColumns...)
		for i, e := range entries[start:end] {
			vals, err := rowValues(start+i, e)
			if err != nil {
				return fmt.Errorf("error encoding entry %d: %w", e.ID, err)
			}
			q = q.Values(vals...)
			maxID = max(maxID, e.ID)
		}

		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("error constructing sql: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("error inserting entries: %w", err)
		}
	}

	const upsertMeta = `INSERT INTO entry_meta (key, value) VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = max(value, excluded.value);`
	if _, err := tx.ExecContext(ctx, upsertMeta, lastEntryIDKey, maxID); err != nil {
		return fmt.Errorf("error updating entry meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing entries: %w", err)
	}

	return nil
}

func (r Repo) LastEntryID(ctx context.Context) (int, error) {
	const q = `SELECT value FROM entry_meta WHERE key = ?;`

	var id int
	err := r.db.GetContext(ctx, &id, q, lastEntryIDKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error fetching last entry id: %w", err)
	}

	return id, nil
}
