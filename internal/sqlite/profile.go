package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dailyrhapsody/diary/internal/diary"
)

type profileRow struct {
	ID        int            `db:"id"`
	Name      sql.NullString `db:"name"`
	Signature sql.NullString `db:"signature"`
	Avatar    sql.NullString `db:"avatar"`
	Location  sql.NullString `db:"location"`
	Industry  sql.NullString `db:"industry"`
	Zodiac    sql.NullString `db:"zodiac"`
	HeaderBg  sql.NullString `db:"header_bg"`
}

// Profile returns the stored profile with unset columns taken from
// [diary.DefaultProfile].
func (r Repo) Profile(ctx context.Context) (diary.Profile, error) {
	const q = `SELECT * FROM profile WHERE id = 1;`

	var row profileRow
	err := r.db.GetContext(ctx, &row, q)
	if errors.Is(err, sql.ErrNoRows) {
		return diary.DefaultProfile, nil
	}
	if err != nil {
		return diary.Profile{}, fmt.Errorf("error fetching profile: %w", err)
	}

	p := diary.DefaultProfile
	for _, f := range []struct {
		dst *string
		src sql.NullString
	}{
		{&p.Name, row.Name},
		{&p.Signature, row.Signature},
		{&p.Avatar, row.Avatar},
		{&p.Location, row.Location},
		{&p.Industry, row.Industry},
		{&p.Zodiac, row.Zodiac},
		{&p.HeaderBg, row.HeaderBg},
	} {
		if f.src.Valid {
			*f.dst = f.src.String
		}
	}

	return p, nil
}

func (r Repo) SaveProfile(ctx context.Context, p diary.Profile) error {
	const q = `INSERT INTO profile (id, name, signature, avatar, location, industry, zodiac, header_bg)
	VALUES (1, :name, :signature, :avatar, :location, :industry, :zodiac, :header_bg)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		signature = excluded.signature,
		avatar = excluded.avatar,
		location = excluded.location,
		industry = excluded.industry,
		zodiac = excluded.zodiac,
		header_bg = excluded.header_bg;`

	args := map[string]any{
		"name":      p.Name,
		"signature": p.Signature,
		"avatar":    p.Avatar,
		"location":  p.Location,
		"industry":  p.Industry,
		"zodiac":    p.Zodiac,
		"header_bg": p.HeaderBg,
	}
	if _, err := r.db.NamedExecContext(ctx, q, args); err != nil {
		return fmt.Errorf("error saving profile: %w", err)
	}

	return nil
}
