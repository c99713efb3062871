package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	_ "modernc.org/sqlite"

	"github.com/dailyrhapsody/diary/internal/api"
	"github.com/dailyrhapsody/diary/internal/comments"
	"github.com/dailyrhapsody/diary/internal/diary"
	"github.com/dailyrhapsody/diary/internal/feed"
	"github.com/dailyrhapsody/diary/internal/logger"
	"github.com/dailyrhapsody/diary/internal/migrations"
	"github.com/dailyrhapsody/diary/internal/sqlite"
	"github.com/dailyrhapsody/diary/internal/uploads"
	"github.com/dailyrhapsody/diary/internal/wordpress"
)

type config struct {
	Database     string `env:"DATABASE, default=diary.db"`
	Port         int    `env:"PORT, default=4444"`
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	Timezone     string `env:"TIMEZONE, default=Asia/Shanghai"`
	SeedFile     string `env:"SEED_FILE"`

	WordPressEnabled      bool          `env:"WORDPRESS_ENABLED, default=false"`
	WordPressBaseURL      string        `env:"WORDPRESS_BASE_URL, default=https://public-api.wordpress.com/rest/v1.1"`
	WordPressSite         string        `env:"WORDPRESS_SITE"`
	WordPressTimeout      time.Duration `env:"WORDPRESS_TIMEOUT, default=3s"`
	WordPressRetries      uint64        `env:"WORDPRESS_RETRIES, default=2"`
	WordPressCacheTTL     time.Duration `env:"WORDPRESS_CACHE_TTL, default=5m"`
	WordPressFetchTimeout time.Duration `env:"WORDPRESS_FETCH_TIMEOUT, default=20s"`

	HTTPSCookies       bool     `env:"HTTPS_COOKIES, default=false"`
	CookieHashKey      string   `env:"COOKIE_HASH_KEY, required"`
	CookieBlockKey     string   `env:"COOKIE_BLOCK_KEY"`
	GithubClientID     string   `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret string   `env:"GITHUB_CLIENT_SECRET"`
	AdminGithubLogins  []string `env:"ADMIN_GITHUB_LOGINS"`
	CorsOrigin         string   `env:"CORS_ORIGIN, default=http://localhost:3000"`
	SSORedirectURL     string   `env:"SSO_REDIRECT_URL"`
	DebugEndpoints     bool     `env:"DEBUG_ENDPOINTS, default=false"`

	UploadBackend      string `env:"UPLOAD_BACKEND, default=disk"`
	UploadDir          string `env:"UPLOAD_DIR, default=uploads"`
	UploadPublicPrefix string `env:"UPLOAD_PUBLIC_PREFIX, default=uploads"`
	S3Bucket           string `env:"S3_BUCKET"`
	S3Region           string `env:"S3_REGION, default=us-east-1"`
	S3BaseEndpoint     string `env:"S3_BASE_ENDPOINT"`
	S3AccessKey        string `env:"S3_ACCESS_KEY"`
	S3SecretKey        string `env:"S3_SECRET_KEY"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL"`

	CommentProfanityFilter bool `env:"COMMENT_PROFANITY_FILTER, default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LoggerFormat, slog.LevelInfo))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("error loading timezone %q: %s", cfg.Timezone, err)
	}

	// Connect to the sqlite db
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Run all migrations
	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}
	repo := sqlite.New(dbx)

	seed, err := diary.LoadSeed(cfg.SeedFile)
	if err != nil {
		log.Fatalf("error loading seed: %s", err)
	}

	var source feed.TimestampSource
	if cfg.WordPressEnabled {
		if cfg.WordPressSite == "" {
			log.Fatalf("WORDPRESS_SITE is required when WORDPRESS_ENABLED is set")
		}
		source = wordpress.NewCached(wordpress.New(wordpress.Config{
			BaseURL: cfg.WordPressBaseURL,
			Site:    cfg.WordPressSite,
			Timeout: cfg.WordPressTimeout,
			Retries: cfg.WordPressRetries,
		}), cfg.WordPressCacheTTL, cfg.WordPressFetchTimeout)
	}

	images, err := uploadStore(ctx, cfg)
	if err != nil {
		log.Fatalf("error configuring uploads: %s", err)
	}

	var (
		feedSvc = feed.New(repo, source, feed.Config{
			Location:      loc,
			EnrichTimeout: cfg.WordPressTimeout,
			Seed:          seed,
		})
		commentSvc = comments.New(repo, comments.Config{ProfanityFilter: cfg.CommentProfanityFilter})
		serverCfg  = api.ServerConfig{
			Port:               cfg.Port,
			CookieHashKey:      []byte(cfg.CookieHashKey),
			CookieBlockKey:     []byte(cfg.CookieBlockKey),
			HttpsCookies:       cfg.HTTPSCookies,
			GithubClientID:     cfg.GithubClientID,
			GithubClientSecret: cfg.GithubClientSecret,
			AdminLogins:        cfg.AdminGithubLogins,
			CorsHeader:         cfg.CorsOrigin,
			SSORedirectURL:     cfg.SSORedirectURL,
			DebugEndpoints:     cfg.DebugEndpoints,
		}
	)
	if cfg.UploadBackend == "disk" {
		serverCfg.UploadDir = cfg.UploadDir
		serverCfg.UploadPrefix = cfg.UploadPublicPrefix
	}
	srv := api.NewServer(serverCfg, feedSvc, commentSvc, repo, images)

	var g run.Group
	g.Add(func() error {
		slog.Info("serving", "addr", srv.Addr, "entries_seeded", len(seed), "wordpress", cfg.WordPressEnabled)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down server", "err", err)
		}
	})
	g.Add(func() error {
		<-ctx.Done()
		return ctx.Err()
	}, func(error) {
		cancel()
	})

	if err := g.Run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited: %s", err)
	}
	slog.Info("shut down")
}

func uploadStore(ctx context.Context, cfg config) (uploads.Store, error) {
	switch cfg.UploadBackend {
	case "disk":
		return uploads.DiskStore{Dir: cfg.UploadDir, Prefix: cfg.UploadPublicPrefix}, nil
	case "s3":
		if cfg.S3Bucket == "" || cfg.S3PublicBaseURL == "" {
			return nil, errors.New("S3_BUCKET and S3_PUBLIC_BASE_URL are required for the s3 backend")
		}
		store, err := uploads.NewS3Store(ctx, uploads.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
}
