// Package diary holds the domain types shared by the feed, comment and
// storage packages.
package diary

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalid      = errors.New("invalid input")
	ErrPinConflict  = errors.New("another entry is already pinned")
	ErrUnauthorized = errors.New("unauthorized")
)

// DateLayout is the layout of an entry's calendar date.
const DateLayout = "2006-01-02"

type (
	// Entry is a single diary post.
	Entry struct {
		ID          int        `json:"id" yaml:"id"`
		Date        string     `json:"date" yaml:"date"`
		PublishedAt *time.Time `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
		Pinned      bool       `json:"pinned" yaml:"pinned"`
		Summary     string     `json:"summary" yaml:"summary"`
		Tags        []string   `json:"tags" yaml:"tags"`
		Images      []string   `json:"images" yaml:"images"`
	}

	// Comment is a reader comment attached to an entry.
	//
	// DiaryID is a weak reference: deleting the entry leaves its comments behind.
	Comment struct {
		ID        string    `json:"id"`
		DiaryID   int       `json:"diaryId"`
		Author    string    `json:"author"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Profile is the author's display identity.
	Profile struct {
		Name      string `json:"name"`
		Signature string `json:"signature"`
		Avatar    string `json:"avatar"`
		Location  string `json:"location"`
		Industry  string `json:"industry"`
		Zodiac    string `json:"zodiac"`
		HeaderBg  string `json:"headerBg"`
	}

	// ProfileUpdate carries the fields to overwrite; nil fields are left alone.
	ProfileUpdate struct {
		Name      *string `json:"name"`
		Signature *string `json:"signature"`
		Avatar    *string `json:"avatar"`
		Location  *string `json:"location"`
		Industry  *string `json:"industry"`
		Zodiac    *string `json:"zodiac"`
		HeaderBg  *string `json:"headerBg"`
	}
)

// EffectiveTime is the instant used for ordering: PublishedAt when set,
// otherwise noon of Date in loc. An unparseable date yields the zero time.
func (e Entry) EffectiveTime(loc *time.Location) time.Time {
	if e.PublishedAt != nil {
		return *e.PublishedAt
	}
	d, err := time.ParseInLocation(DateLayout, e.Date, loc)
	if err != nil {
		return time.Time{}
	}

	return d.Add(12 * time.Hour)
}

// Apply merges the update over p.
func (u ProfileUpdate) Apply(p Profile) Profile {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Name, u.Name)
	set(&p.Signature, u.Signature)
	set(&p.Avatar, u.Avatar)
	set(&p.Location, u.Location)
	set(&p.Industry, u.Industry)
	set(&p.Zodiac, u.Zodiac)
	set(&p.HeaderBg, u.HeaderBg)

	return p
}

// DefaultProfile is served until the author saves their own.
var DefaultProfile = Profile{
	Name:      "DailyRhapsody",
	Signature: "君子论迹不论心",
	Avatar:    "/avatar.png",
	Location:  "杭州",
	Industry:  "计算机硬件行业",
	Zodiac:    "天秤座",
	HeaderBg:  "/header-bg.png",
}

type (
	// EntryStore persists the whole entry collection at once.
	EntryStore interface {
		// Entries returns the persisted collection in stored order, or seed if
		// nothing was ever persisted. Once something has been written the seed
		// is never used again: a collection emptied by deletes stays empty.
		Entries(ctx context.Context, seed []Entry) ([]Entry, error)
		// ReplaceEntries atomically overwrites the collection.
		ReplaceEntries(ctx context.Context, entries []Entry) error
		// LastEntryID is the highest id ever persisted, including deleted ones.
		LastEntryID(ctx context.Context) (int, error)
	}

	CommentStore interface {
		Comments(ctx context.Context, diaryID int) ([]Comment, error)
		InsertComment(ctx context.Context, c Comment) error
	}

	ProfileStore interface {
		// Profile returns the stored profile merged over DefaultProfile.
		Profile(ctx context.Context) (Profile, error)
		SaveProfile(ctx context.Context, p Profile) error
	}
)
