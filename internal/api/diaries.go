package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	diaryerrs "github.com/dailyrhapsody/diary/internal/errors"
	"github.com/dailyrhapsody/diary/internal/feed"
	"github.com/dailyrhapsody/diary/internal/serverutil"
)

// diaryRequest is the body of both create and update. Absent fields keep
// their current value on update.
type diaryRequest struct {
	Date        *string   `json:"date"`
	PublishedAt *string   `json:"publishedAt"`
	Pinned      *bool     `json:"pinned"`
	Summary     *string   `json:"summary"`
	Tags        *[]string `json:"tags"`
	Images      *[]string `json:"images"`
}

func (b diaryRequest) draft() feed.Draft {
	var d feed.Draft
	if b.Date != nil {
		d.Date = *b.Date
	}
	if b.PublishedAt != nil {
		d.PublishedAt = *b.PublishedAt
	}
	if b.Pinned != nil {
		d.Pinned = *b.Pinned
	}
	if b.Summary != nil {
		d.Summary = *b.Summary
	}
	if b.Tags != nil {
		d.Tags = *b.Tags
	}
	if b.Images != nil {
		d.Images = *b.Images
	}

	return d
}

func (b diaryRequest) patch() feed.Patch {
	return feed.Patch{
		Date:        b.Date,
		PublishedAt: b.PublishedAt,
		Pinned:      b.Pinned,
		Summary:     b.Summary,
		Tags:        b.Tags,
		Images:      b.Images,
	}
}

func decodeDiaryRequest(r *http.Request) (diaryRequest, error) {
	var body diaryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, diaryerrs.E("invalid body", http.StatusBadRequest)
	}
	return body, nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return 0, diaryerrs.E("invalid id", http.StatusBadRequest)
	}
	return id, nil
}

// Without any pagination parameter this is the whole collection as a bare
// array; otherwise it is a page envelope.
func (s Server) getDiaries(w http.ResponseWriter, r *http.Request) error {
	q, paged := parsePaginationParams(r)
	if !paged {
		entries, err := s.feed.All(r.Context())
		if err != nil {
			return err
		}
		return serverutil.WriteJSON(w, http.StatusOK, entries)
	}

	page, err := s.feed.Page(r.Context(), q)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, page)
}

func (s Server) getDiary(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	entry, err := s.feed.Entry(r.Context(), id)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, entry)
}

func (s Server) postDiary(w http.ResponseWriter, r *http.Request) error {
	body, err := decodeDiaryRequest(r)
	if err != nil {
		return err
	}

	entry, err := s.feed.Create(r.Context(), body.draft())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, entry)
}

func (s Server) putDiary(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	body, err := decodeDiaryRequest(r)
	if err != nil {
		return err
	}

	entry, err := s.feed.Update(r.Context(), id, body.patch())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, entry)
}

func (s Server) deleteDiary(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	if err := s.feed.Delete(r.Context(), id); err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
