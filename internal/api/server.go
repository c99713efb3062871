// Package api is the HTTP surface of the diary: the public feed, comments
// and profile, and the admin-only mutations behind a GitHub login.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/dailyrhapsody/diary/internal/diary"
	"github.com/dailyrhapsody/diary/internal/feed"
	"github.com/dailyrhapsody/diary/internal/serverutil"
	"github.com/dailyrhapsody/diary/internal/uploads"
)

type (
	// Feed is the entry collection as served to readers and edited by the admin.
	Feed interface {
		All(ctx context.Context) ([]diary.Entry, error)
		Page(ctx context.Context, q feed.PageQuery) (feed.Page, error)
		Entry(ctx context.Context, id int) (diary.Entry, error)
		Create(ctx context.Context, d feed.Draft) (diary.Entry, error)
		Update(ctx context.Context, id int, p feed.Patch) (diary.Entry, error)
		Delete(ctx context.Context, id int) error
	}

	Comments interface {
		List(ctx context.Context, diaryID int) ([]diary.Comment, error)
		Append(ctx context.Context, diaryID int, author, content string) (diary.Comment, error)
	}

	// Server serves the diary API.
	Server struct {
		*http.Server

		feed     Feed
		comments Comments
		profiles diary.ProfileStore
		images   uploads.Store

		ghOauthConfig  oauth2.Config
		admins         map[string]bool // GitHub logins allowed to edit
		secureCookie   *securecookie.SecureCookie
		httpsCookies   bool   // Whether or not HTTPS should be used for cookies
		ssoRedirectURL string // URL to redirect to after successful SSO login
		now            func() time.Time
	}

	ServerConfig struct {
		Port               int
		CookieHashKey      []byte
		CookieBlockKey     []byte
		HttpsCookies       bool
		GithubClientID     string
		GithubClientSecret string
		AdminLogins        []string
		CorsHeader         string
		SSORedirectURL     string

		// Serves files written by the disk upload backend when set.
		UploadDir    string
		UploadPrefix string

		DebugEndpoints bool
	}
)

func NewServer(config ServerConfig, f Feed, c Comments, profiles diary.ProfileStore, images uploads.Store) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	admins := make(map[string]bool, len(config.AdminLogins))
	for _, login := range config.AdminLogins {
		admins[login] = true
	}

	srvr := Server{
		feed:           f,
		comments:       c,
		profiles:       profiles,
		images:         images,
		admins:         admins,
		secureCookie:   securecookie.New(config.CookieHashKey, config.CookieBlockKey),
		httpsCookies:   config.HttpsCookies,
		ssoRedirectURL: config.SSORedirectURL,
		now:            time.Now,
		ghOauthConfig: oauth2.Config{
			ClientID:     config.GithubClientID,
			ClientSecret: config.GithubClientSecret,
			Scopes:       []string{},
			Endpoint:     github.Endpoint,
		},
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if config.UploadDir != "" {
		prefix := "/" + config.UploadPrefix + "/"
		r.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(config.UploadDir)))).Methods(http.MethodGet)
	}

	// Session
	r.HandleFuncE("/api/viewer", srvr.handleViewer).Methods(http.MethodGet)
	r.HandleFuncE("/api/sso-login", srvr.handleSSORedirect).Methods(http.MethodGet)
	r.HandleFuncE("/api/sso-callback", srvr.handleSSOCallback).Methods(http.MethodGet)
	r.HandleFuncE("/api/logout", srvr.getLogout).Methods(http.MethodGet)

	if config.DebugEndpoints {
		// For local testing
		r.HandleFuncE("/api/login", srvr.handleDebugLogin).Methods(http.MethodPost)
	}

	// Public reads
	r.HandleFuncE("/api/diaries", srvr.getDiaries).Methods(http.MethodGet)
	r.HandleFuncE("/api/diaries/{id}", srvr.getDiary).Methods(http.MethodGet)
	r.HandleFuncE("/api/diaries/{id}/comments", srvr.getComments).Methods(http.MethodGet)
	r.HandleFuncE("/api/diaries/{id}/comments", srvr.postComment).Methods(http.MethodPost)
	r.HandleFuncE("/api/profile", srvr.getProfile).Methods(http.MethodGet)

	admin := serverutil.ErrRouter{Router: r.NewRoute().Subrouter()}
	admin.Use(requireAdminMiddleware(srvr.secureCookie))

	admin.HandleFuncE("/api/diaries", srvr.postDiary).Methods(http.MethodPost)
	admin.HandleFuncE("/api/diaries/{id}", srvr.putDiary).Methods(http.MethodPut)
	admin.HandleFuncE("/api/diaries/{id}", srvr.deleteDiary).Methods(http.MethodDelete)
	admin.HandleFuncE("/api/profile", srvr.putProfile).Methods(http.MethodPut)
	admin.HandleFuncE("/api/upload", srvr.postUpload).Methods(http.MethodPost)

	slog.Debug("configured diary server", "port", config.Port, "admins", len(admins))

	return &srvr
}
