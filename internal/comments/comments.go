// Package comments is the reader comment thread under each diary entry.
package comments

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dailyrhapsody/diary/internal/diary"
)

const (
	MaxAuthorLength  = 64
	MaxContentLength = 2000

	// Used when a commenter leaves the name blank.
	DefaultAuthor = "匿名"
)

type Config struct {
	// Reject comments that trip the profanity detector.
	ProfanityFilter bool
	// Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store     diary.CommentStore
	policy    *bluemonday.Policy
	profanity bool
	now       func() time.Time
}

func New(store diary.CommentStore, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:     store,
		policy:    bluemonday.StrictPolicy(),
		profanity: cfg.ProfanityFilter,
		now:       cfg.Now,
	}
}

// List returns the thread for an entry, oldest first. An entry without
// comments has an empty thread.
func (s *Service) List(ctx context.Context, diaryID int) ([]diary.Comment, error) {
	comments, err := s.store.Comments(ctx, diaryID)
	if err != nil {
		return nil, fmt.Errorf("error listing comments for entry %d: %w", diaryID, err)
	}
	if comments == nil {
		comments = []diary.Comment{}
	}

	return comments, nil
}

// Append adds a comment to the thread. The entry is not required to exist.
func (s *Service) Append(ctx context.Context, diaryID int, author, content string) (diary.Comment, error) {
	author = truncate(s.clean(author), MaxAuthorLength)
	if author == "" {
		author = DefaultAuthor
	}
	content = truncate(s.clean(content), MaxContentLength)
	if content == "" {
		return diary.Comment{}, fmt.Errorf("comment content is empty: %w", diary.ErrInvalid)
	}
	if s.profanity && (goaway.IsProfane(author) || goaway.IsProfane(content)) {
		return diary.Comment{}, fmt.Errorf("profanity detected in comment: %w", diary.ErrInvalid)
	}

	c := diary.Comment{
		ID:        uuid.NewString() + "-cmt",
		DiaryID:   diaryID,
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertComment(ctx, c); err != nil {
		return diary.Comment{}, fmt.Errorf("error saving comment: %w", err)
	}
	slog.InfoContext(ctx, "comment added", "diary_id", diaryID, "comment_id", c.ID)

	return c, nil
}

// Tags are dropped and whitespace trimmed. Comments are served as JSON text,
// so the policy's entity escaping is undone.
func (s *Service) clean(text string) string {
	text = strings.TrimSpace(text)
	if !diary.HasMarkup(text) {
		return text
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// truncate cuts on rune boundaries so multi-byte names stay valid.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
