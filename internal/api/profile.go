package api

import (
	"encoding/json"
	"net/http"

	"github.com/dailyrhapsody/diary/internal/diary"
	diaryerrs "github.com/dailyrhapsody/diary/internal/errors"
	"github.com/dailyrhapsody/diary/internal/serverutil"
)

func (s Server) getProfile(w http.ResponseWriter, r *http.Request) error {
	profile, err := s.profiles.Profile(r.Context())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, profile)
}

// Only the fields present in the body change.
func (s Server) putProfile(w http.ResponseWriter, r *http.Request) error {
	var body diary.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return diaryerrs.E("invalid body", http.StatusBadRequest)
	}

	current, err := s.profiles.Profile(r.Context())
	if err != nil {
		return err
	}
	updated := body.Apply(current)
	if err := s.profiles.SaveProfile(r.Context(), updated); err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, updated)
}
