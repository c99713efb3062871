package diary_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyrhapsody/diary/internal/diary"
)

func TestEffectiveTime(t *testing.T) {
	published := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry diary.Entry
		want  time.Time
	}{
		{
			name:  "published at wins",
			entry: diary.Entry{Date: "2024-01-01", PublishedAt: &published},
			want:  published,
		},
		{
			name:  "date falls back to noon",
			entry: diary.Entry{Date: "2024-01-01"},
			want:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "bad date is the zero time",
			entry: diary.Entry{Date: "yesterday"},
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.entry.EffectiveTime(time.UTC)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestProfileUpdateApply(t *testing.T) {
	name := "Someone"
	got := diary.ProfileUpdate{Name: &name}.Apply(diary.DefaultProfile)

	want := diary.DefaultProfile
	want.Name = "Someone"
	assert.Equal(t, want, got)
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[
		{"id": 1, "date": "2024-01-01", "summary": "first", "tags": ["life"]},
		{"id": 2, "date": "2024-01-02", "pinned": true}
	]`), 0o600))

	yamlPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: 1
  date: "2024-01-01"
  summary: first
  tags: [life]
- id: 2
  date: "2024-01-02"
  pinned: true
`), 0o600))

	for _, path := range []string{jsonPath, yamlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			entries, err := diary.LoadSeed(path)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			assert.Equal(t, 1, entries[0].ID)
			assert.Equal(t, "first", entries[0].Summary)
			assert.Equal(t, []string{"life"}, entries[0].Tags)
			assert.True(t, entries[1].Pinned)
		})
	}

	t.Run("no path", func(t *testing.T) {
		entries, err := diary.LoadSeed("")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := diary.LoadSeed(filepath.Join(dir, "nope.json"))
		require.Error(t, err)
	})
}

func TestHasMarkup(t *testing.T) {
	tests := map[string]bool{
		"<p>hello</p>":         true,
		"before <br/> after":   true,
		`<a href="x">link</a>`: true,
		"</div>":               true,
		"I <3 this":            false,
		"x < y":                false,
		"1 < 2 && 3 > 2":       false,
		"<< quoted >>":         false,
		"plain text":           false,
	}

	for text, want := range tests {
		t.Run(text, func(t *testing.T) {
			assert.Equal(t, want, diary.HasMarkup(text))
		})
	}
}
