package sqlite

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dailyrhapsody/diary/internal/diary"
)

type commentRow struct {
	ID        string `db:"id"`
	DiaryID   int    `db:"diary_id"`
	Author    string `db:"author"`
	Content   string `db:"content"`
	CreatedAt string `db:"created_at"`
}

func (r Repo) InsertComment(ctx context.Context, c diary.Comment) error {
	const q = `INSERT INTO comments (id, diary_id, author, content, created_at)
	VALUES (:id, :diary_id, :author, :content, :created_at);`

	row := commentRow{
		ID:        c.ID,
		DiaryID:   c.DiaryID,
		Author:    c.Author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt.UTC().Format(timeLayout),
	}
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("error inserting comment: %w", err)
	}

	return nil
}

// Comments lists an entry's comments, oldest first.
func (r Repo) Comments(ctx context.Context, diaryID int) ([]diary.Comment, error) {
	query, args, err := sq.Select("id", "diary_id", "author", "content", "created_at").
		From("comments").
		Where(sq.Eq{"diary_id": diaryID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %w", err)
	}

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting comments: %w", err)
	}

	comments := make([]diary.Comment, 0, len(rows))
	for _, row := range rows {
		createdAt, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error parsing created_at of comment %s: %w", row.ID, err)
		}
		comments = append(comments, diary.Comment{
			ID:        row.ID,
			DiaryID:   row.DiaryID,
			Author:    row.Author,
			Content:   row.Content,
			CreatedAt: createdAt,
		})
	}

	return comments, nil
}
