package api

import (
	"encoding/json"
	"net/http"

	diaryerrs "github.com/dailyrhapsody/diary/internal/errors"
	"github.com/dailyrhapsody/diary/internal/serverutil"
)

type commentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

func (s Server) getComments(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	comments, err := s.comments.List(r.Context(), id)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, comments)
}

// Anyone may comment.
func (s Server) postComment(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var body commentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return diaryerrs.E("invalid body", http.StatusBadRequest)
	}

	comment, err := s.comments.Append(r.Context(), id, body.Author, body.Content)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, comment)
}
