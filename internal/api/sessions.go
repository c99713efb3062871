package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	"github.com/dailyrhapsody/diary/internal/diary"
	diaryerrs "github.com/dailyrhapsody/diary/internal/errors"
	"github.com/dailyrhapsody/diary/internal/serverutil"
)

const sessionCookieName = "diary_session"

// Describes a user's sessionState that's persisted to their cookie.
type sessionState struct {
	State string // For SSO
	Login string // GitHub login
	Admin bool
}

// Fetches the current session tied to the request.
func session(r *http.Request, secureCookie *securecookie.SecureCookie) sessionState {
	cookie, err := r.Cookie(sessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sessionState{}
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "error fetching cookie", "err", err)
		return sessionState{}
	}

	value := sessionState{}
	if err := secureCookie.Decode(sessionCookieName, cookie.Value, &value); err != nil {
		slog.WarnContext(r.Context(), "error decoding cookie", "err", err)
		return sessionState{}
	}

	return value
}

// Sets the session on the request.
func setSession(w http.ResponseWriter, secureCookie *securecookie.SecureCookie, https bool, sess sessionState) {
	encoded, err := secureCookie.Encode(sessionCookieName, sess)
	if err != nil {
		slog.Error("error encoding cookie", "err", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   https,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Rejects anyone without an admin session before the handler touches a store.
func requireAdminMiddleware(sc *securecookie.SecureCookie) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session(r, sc).Admin {
				sErr := diaryerrs.FromDomain(diary.ErrUnauthorized)
				if err := serverutil.WriteJSON(w, sErr.Status, sErr); err != nil {
					slog.ErrorContext(r.Context(), "error writing response", "error", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Redirects the user to the SSO login page.
func (s Server) handleSSORedirect(w http.ResponseWriter, r *http.Request) error {
	// Create a state to store as part of the flow
	state := sessionState{
		State: uuid.NewString(),
	}
	setSession(w, s.secureCookie, s.httpsCookies, state)

	http.Redirect(w, r, s.ghOauthConfig.AuthCodeURL(state.State), http.StatusTemporaryRedirect)
	return nil
}

// Handles the code coming back from github. Every outcome is a redirect back
// to the frontend.
func (s Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) error {
	sess := session(r, s.secureCookie)
	q := r.URL.Query()
	if sess.State == "" || q.Get("state") != sess.State {
		s.redirectWithError(w, r, "invalid_state")
		return nil
	}
	if q.Get("error") != "" {
		s.redirectWithError(w, r, q.Get("error"))
		return nil
	}

	tok, err := s.ghOauthConfig.Exchange(context.Background(), q.Get("code"))
	if err != nil {
		s.redirectWithError(w, r, err.Error())
		return nil
	}

	client := s.ghOauthConfig.Client(r.Context(), tok)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		s.redirectWithError(w, r, err.Error())
		return nil
	}
	defer resp.Body.Close()

	var info struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		s.redirectWithError(w, r, err.Error())
		return nil
	}

	admin := s.admins[info.Login]
	slog.InfoContext(r.Context(), "sso login", "login", info.Login, "admin", admin)
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{Login: info.Login, Admin: admin})

	http.Redirect(w, r, s.redirectURL(), http.StatusFound)
	return nil
}

func (s Server) redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, s.redirectURL()+"?error="+url.QueryEscape(msg), http.StatusFound)
}

// Defaults to "/" if not set.
func (s Server) redirectURL() string {
	if s.ssoRedirectURL == "" {
		return "/"
	}
	return s.ssoRedirectURL
}

func (s Server) getLogout(w http.ResponseWriter, r *http.Request) error {
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{})
	http.Redirect(w, r, s.redirectURL(), http.StatusFound)

	return nil
}

type debugLogin struct {
	Login string `json:"login"`
}

func (d debugLogin) Validate() error {
	if d.Login == "" {
		return errors.New("login is required")
	}
	return nil
}

// Logs in as the given login without GitHub. Only mounted with debug endpoints.
func (s Server) handleDebugLogin(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[debugLogin](r.Body)
	if err != nil {
		return err
	}

	sess := sessionState{Login: body.Login, Admin: s.admins[body.Login]}
	setSession(w, s.secureCookie, s.httpsCookies, sess)

	return serverutil.WriteJSON(w, http.StatusOK, viewerFrom(sess))
}
