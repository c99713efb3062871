package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dailyrhapsody/diary/internal/comments"
	"github.com/dailyrhapsody/diary/internal/diary"
	"github.com/dailyrhapsody/diary/internal/feed"
	"github.com/dailyrhapsody/diary/internal/migrations"
	"github.com/dailyrhapsody/diary/internal/sqlite"
	"github.com/dailyrhapsody/diary/internal/uploads"
)

type testServer struct {
	*Server
	uploadDir string
}

func newTestServer(t *testing.T, seed ...diary.Entry) testServer {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	var (
		repo      = sqlite.New(dbx)
		uploadDir = t.TempDir()
		f         = feed.New(repo, nil, feed.Config{Location: time.UTC, Seed: seed})
		c         = comments.New(repo, comments.Config{})
		images    = uploads.DiskStore{Dir: uploadDir, Prefix: "uploads"}
	)

	srv := NewServer(ServerConfig{
		CookieHashKey:  []byte("0123456789abcdef0123456789abcdef"),
		CookieBlockKey: []byte("0123456789abcdef"),
		AdminLogins:    []string{"owner"},
		CorsHeader:     "http://localhost:3000",
		UploadDir:      uploadDir,
		UploadPrefix:   "uploads",
		DebugEndpoints: true,
	}, f, c, repo, images)

	return testServer{Server: srv, uploadDir: uploadDir}
}

func (s testServer) cookie(t *testing.T, sess sessionState) *http.Cookie {
	t.Helper()

	encoded, err := s.secureCookie.Encode(sessionCookieName, sess)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookieName, Value: encoded}
}

// do sends req through the full handler chain, as admin when admin is set.
func (s testServer) do(t *testing.T, req *http.Request, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	if admin {
		req.AddCookie(s.cookie(t, sessionState{Login: "owner", Admin: true}))
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func (s testServer) doJSON(t *testing.T, method, target, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, admin)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func entryIDs(entries []diary.Entry) []int {
	var out []int
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestGetDiariesFullSync(t *testing.T) {
	s := newTestServer(t,
		diary.Entry{ID: 1, Date: "2024-01-01"},
		diary.Entry{ID: 2, Date: "2024-06-01", Pinned: true},
		diary.Entry{ID: 3, Date: "2024-12-01"},
	)

	rec := s.doJSON(t, http.MethodGet, "/api/diaries", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]diary.Entry](t, rec)
	assert.Equal(t, []int{2, 3, 1}, entryIDs(got))
}

func TestGetDiariesPaged(t *testing.T) {
	var seed []diary.Entry
	for i := 0; i < 25; i++ {
		seed = append(seed, diary.Entry{
			ID:   i + 1,
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(diary.DateLayout),
			Tags: []string{"daily"},
		})
	}
	s := newTestServer(t, seed...)

	t.Run("last page", func(t *testing.T) {
		rec := s.doJSON(t, http.MethodGet, "/api/diaries?limit=10&offset=20", "", false)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[map[string]json.RawMessage](t, rec)
		assert.JSONEq(t, "false", string(body["hasMore"]))
		assert.JSONEq(t, "25", string(body["total"]))
		assert.NotContains(t, body, "tagCounts")

		var items []diary.Entry
		require.NoError(t, json.Unmarshal(body["items"], &items))
		assert.Len(t, items, 5)
	})

	t.Run("first page carries aggregates", func(t *testing.T) {
		rec := s.doJSON(t, http.MethodGet, "/api/diaries?limit=abc", "", false)
		require.Equal(t, http.StatusOK, rec.Code)

		page := decode[feed.Page](t, rec)
		assert.Len(t, page.Items, 25)
		require.NotNil(t, page.Aggregates)
		assert.Equal(t, []feed.TagCount{{Name: "daily", Value: 25}}, page.TagCounts)
		assert.Len(t, page.Dates, 25)
	})

	t.Run("tag alone pages", func(t *testing.T) {
		rec := s.doJSON(t, http.MethodGet, "/api/diaries?tag=nothing", "", false)
		require.Equal(t, http.StatusOK, rec.Code)

		page := decode[feed.Page](t, rec)
		assert.Empty(t, page.Items)
		assert.Zero(t, page.Total)
		assert.False(t, page.HasMore)
	})
}

func TestMutationsRequireAdmin(t *testing.T) {
	s := newTestServer(t, diary.Entry{ID: 1, Date: "2024-01-01"})

	tests := []struct {
		method, target, body string
	}{
		{http.MethodPost, "/api/diaries", `{"summary":"x"}`},
		{http.MethodPut, "/api/diaries/1", `{"summary":"x"}`},
		{http.MethodDelete, "/api/diaries/1", ""},
		{http.MethodPut, "/api/profile", `{"name":"x"}`},
		{http.MethodPost, "/api/upload", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			for _, sess := range []*sessionState{nil, {Login: "visitor"}} {
				req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
				if sess != nil {
					req.AddCookie(s.cookie(t, *sess))
				}

				rec := s.do(t, req, false)
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.JSONEq(t, `{"error":"unauthorized","status":401}`, rec.Body.String())
			}
		})
	}

	// Nothing was written.
	rec := s.doJSON(t, http.MethodGet, "/api/diaries", "", false)
	got := decode[[]diary.Entry](t, rec)
	assert.Equal(t, []diary.Entry{{ID: 1, Date: "2024-01-01"}}, got)
}

func TestDiaryLifecycle(t *testing.T) {
	s := newTestServer(t, diary.Entry{ID: 7, Date: "2024-01-01", Pinned: true})

	rec := s.doJSON(t, http.MethodPost, "/api/diaries", `{"date":"2024-02-01","summary":"hello","tags":["a"," a ",""]}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[diary.Entry](t, rec)
	assert.Equal(t, 8, created.ID)
	assert.Equal(t, []string{"a"}, created.Tags)

	rec = s.doJSON(t, http.MethodGet, "/api/diaries/8", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[diary.Entry](t, rec))

	rec = s.doJSON(t, http.MethodPut, "/api/diaries/8", `{"summary":"edited"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", decode[diary.Entry](t, rec).Summary)

	rec = s.doJSON(t, http.MethodDelete, "/api/diaries/8", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = s.doJSON(t, http.MethodGet, "/api/diaries/8", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPinConflictIsRejected(t *testing.T) {
	s := newTestServer(t,
		diary.Entry{ID: 1, Date: "2024-01-01", Pinned: true},
		diary.Entry{ID: 2, Date: "2024-01-02"},
	)

	rec := s.doJSON(t, http.MethodPost, "/api/diaries", `{"date":"2024-02-01","pinned":true}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.doJSON(t, http.MethodPut, "/api/diaries/2", `{"pinned":true}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already pinned")

	rec = s.doJSON(t, http.MethodGet, "/api/diaries", "", false)
	got := decode[[]diary.Entry](t, rec)
	assert.Equal(t, []int{1, 2}, entryIDs(got))
}

func TestDiaryValidation(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{`{`, `{"date":"01/02/2024"}`, `{"publishedAt":"noon"}`} {
		rec := s.doJSON(t, http.MethodPost, "/api/diaries", body, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := s.doJSON(t, http.MethodPut, "/api/diaries/99", `{"summary":"x"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.doJSON(t, http.MethodDelete, "/api/diaries/99", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.doJSON(t, http.MethodGet, "/api/diaries/99999999999999999999", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMalformedDiaryIDIsBadRequest(t *testing.T) {
	s := newTestServer(t, diary.Entry{ID: 1, Date: "2024-01-01"})

	tests := []struct {
		method string
		target string
		body   string
		admin  bool
	}{
		{http.MethodGet, "/api/diaries/abc", "", false},
		{http.MethodGet, "/api/diaries/abc/comments", "", false},
		{http.MethodPost, "/api/diaries/abc/comments", `{"content":"hi"}`, false},
		{http.MethodPut, "/api/diaries/1x", `{"summary":"x"}`, true},
		{http.MethodDelete, "/api/diaries/-", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := s.doJSON(t, tt.method, tt.target, tt.body, tt.admin)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"invalid id","status":400}`, rec.Body.String())
		})
	}
}

func TestComments(t *testing.T) {
	s := newTestServer(t, diary.Entry{ID: 1, Date: "2024-01-01"})

	rec := s.doJSON(t, http.MethodGet, "/api/diaries/1/comments", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.doJSON(t, http.MethodPost, "/api/diaries/1/comments", `{"author":"  ","content":"  hi  "}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[diary.Comment](t, rec)
	assert.Equal(t, comments.DefaultAuthor, c.Author)
	assert.Equal(t, "hi", c.Content)
	assert.Equal(t, 1, c.DiaryID)

	rec = s.doJSON(t, http.MethodPost, "/api/diaries/1/comments", `{"author":"amy","content":"   "}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodGet, "/api/diaries/1/comments", "", false)
	listed := decode[[]diary.Comment](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, c.ID, listed[0].ID)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)

	rec := s.doJSON(t, http.MethodGet, "/api/profile", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, diary.DefaultProfile, decode[diary.Profile](t, rec))

	rec = s.doJSON(t, http.MethodPut, "/api/profile", `{"name":"Someone","zodiac":"Leo"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	want := diary.DefaultProfile
	want.Name, want.Zodiac = "Someone", "Leo"
	assert.Equal(t, want, decode[diary.Profile](t, rec))

	rec = s.doJSON(t, http.MethodGet, "/api/profile", "", false)
	assert.Equal(t, want, decode[diary.Profile](t, rec))
}

func multipartBody(t *testing.T, field string, parts map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var (
		buf bytes.Buffer
		mw  = multipart.NewWriter(&buf)
	)
	for filename, contentType := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte("data:" + filename))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)

	t.Run("skips disallowed types", func(t *testing.T) {
		body, ct := multipartBody(t, "files", map[string]string{
			"a.png":   "image/png",
			"b.txt":   "text/plain",
			"c.jpeg":  "image/jpeg",
			"evil.sv": "image/svg+xml",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)

		rec := s.do(t, req, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[uploadResponse](t, rec)
		require.Len(t, resp.URLs, 2)
		for _, url := range resp.URLs {
			assert.True(t, strings.HasPrefix(url, "/uploads/"), url)

			_, err := os.Stat(filepath.Join(s.uploadDir, strings.TrimPrefix(url, "/uploads/")))
			require.NoError(t, err)

			// And the file is served back.
			get := s.do(t, httptest.NewRequest(http.MethodGet, url, nil), false)
			assert.Equal(t, http.StatusOK, get.Code)
			assert.True(t, strings.HasPrefix(get.Body.String(), "data:"))
		}
	})

	t.Run("single file field", func(t *testing.T) {
		body, ct := multipartBody(t, "file", map[string]string{"one.gif": "image/gif"})
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)

		rec := s.do(t, req, true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[uploadResponse](t, rec).URLs, 1)
	})

	t.Run("no files", func(t *testing.T) {
		body, ct := multipartBody(t, "other", map[string]string{"x.png": "image/png"})
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)

		rec := s.do(t, req, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "No files")
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := s.doJSON(t, http.MethodPost, "/api/upload", `{}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestViewerAndDebugLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.doJSON(t, http.MethodGet, "/api/viewer", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"admin":false}`, rec.Body.String())

	rec = s.doJSON(t, http.MethodGet, "/api/viewer", "", true)
	assert.JSONEq(t, `{"login":"owner","admin":true}`, rec.Body.String())

	rec = s.doJSON(t, http.MethodPost, "/api/login", `{"login":"owner"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"login":"owner","admin":true}`, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	// The issued cookie unlocks admin routes.
	req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(`{"name":"x"}`))
	req.AddCookie(cookies[0])
	assert.Equal(t, http.StatusOK, s.do(t, req, false).Code)

	rec = s.doJSON(t, http.MethodPost, "/api/login", `{"login":""}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSSOCallbackRejectsBadState(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sso-callback?state=forged&code=x", nil)
	req.AddCookie(s.cookie(t, sessionState{State: "expected"}))

	rec := s.do(t, req, false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?error=invalid_state", rec.Header().Get("Location"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.doJSON(t, http.MethodGet, "/api/profile", "", false)

	rec := s.doJSON(t, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "diary_http_requests_total")
}
