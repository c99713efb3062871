// Package sqlite implements the diary stores on top of a sqlite database.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dailyrhapsody/diary/internal/diary"
)

var (
	_ diary.EntryStore   = (*Repo)(nil)
	_ diary.CommentStore = (*Repo)(nil)
	_ diary.ProfileStore = (*Repo)(nil)
)

// Fixed width so that stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}

// Open connects to the sqlite database at path.
//
// Writes are serialized by sqlite itself; the busy timeout keeps concurrent
// writers waiting instead of failing.
func Open(path string) (*sqlx.DB, error) {
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	return dbx, nil
}
