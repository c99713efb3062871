package api

import (
	"net/http"

	"github.com/dailyrhapsody/diary/internal/serverutil"
)

// Viewer tells the frontend who is looking and whether to show the editor.
type Viewer struct {
	Login string `json:"login,omitempty"`
	Admin bool   `json:"admin"`
}

func viewerFrom(sess sessionState) Viewer {
	return Viewer{Login: sess.Login, Admin: sess.Admin}
}

func (s Server) handleViewer(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, viewerFrom(session(r, s.secureCookie)))
}
