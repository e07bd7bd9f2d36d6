package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cinema-reservation/internal/auth"
	"cinema-reservation/internal/db"
	"cinema-reservation/internal/maintenance"
	"cinema-reservation/internal/observability"
	"cinema-reservation/internal/showtime"
	"cinema-reservation/internal/user"
)

// csrfExemptPaths skip the double-submit check: the session endpoints cannot
// carry a token yet, and the maintenance endpoint is machine-to-machine,
// gated by the cron secret instead of cookies.
var csrfExemptPaths = []string{
	"/api/v1/login",
	"/api/v1/register",
	"/api/v1/token/refresh",
	"/api/v1/logout",
	"/internal/maintenance/cleanup",
	"/health",
	"/favicon.ico",
}

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development"), os.Getenv("APP_RELEASE")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	cookieSecure := EnvBoolOrDefault("COOKIE_SECURE", false)
	cookies := auth.CookiePolicy{
		AccessName:  envOrDefault("ACCESS_COOKIE_NAME", "access_token"),
		RefreshName: envOrDefault("REFRESH_COOKIE_NAME", "refresh_token"),
		Secure:      cookieSecure,
	}

	credentials := auth.BcryptCredentials{}
	codec := auth.NewCodec(jwtSecret)
	issuer := auth.NewIssuer(
		codec,
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 720),
	)

	authRepo := auth.NewRepository(database)
	guard := auth.NewAttemptGuard(authRepo)
	authService := auth.NewService(authRepo, authRepo, guard, credentials, codec, issuer, logger)
	authHandler := auth.NewHandler(authService, cookies)

	resolver := auth.NewSessionResolver(codec, authRepo, authRepo, cookies.AccessName, logger)

	csrfGuard := auth.NewCSRFGuard(auth.CSRFConfig{
		CookieName:   envOrDefault("CSRF_COOKIE_NAME", "csrf_token"),
		HeaderName:   envOrDefault("CSRF_HEADER_NAME", "X-CSRF-Token"),
		CookieMaxAge: envMinutesOrDefault("CSRF_COOKIE_TTL_MINUTES", 15),
		ExemptPaths:  csrfExemptPaths,
		Secure:       cookieSecure,
	})

	userRepo := user.NewRepository(database)
	userHandler := user.NewHandler(userRepo, credentials)

	if err := bootstrapAdmin(userRepo, credentials); err != nil {
		_ = database.Close()
		return nil, err
	}

	showtimeRepo := showtime.NewRepository(database)
	showtimeHandler := showtime.NewHandler(showtimeRepo)

	sweepHandler := maintenance.NewSweepHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("REVOKED_TOKEN_RETENTION_DAYS", 14),
		envIntOrDefault("REVOCATION_SWEEP_BATCH_SIZE", 500),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/register", userHandler.Register)
	mux.HandleFunc("POST /api/v1/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/token/refresh", authHandler.Refresh)
	mux.Handle("POST /api/v1/logout", auth.RequireIdentity(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/v1/profile", auth.RequireIdentity(http.HandlerFunc(userHandler.Profile)))
	mux.HandleFunc("GET /api/v1/showtimes", showtimeHandler.List)
	mux.Handle("POST /api/v1/showtimes", auth.RequireAdmin(http.HandlerFunc(showtimeHandler.Create)))
	mux.Handle("DELETE /api/v1/showtimes/{id}", auth.RequireAdmin(http.HandlerFunc(showtimeHandler.Delete)))
	mux.HandleFunc("GET /internal/maintenance/cleanup", sweepHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", sweepHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	// CSRF runs before session resolution so forged unsafe requests never
	// touch the datastore.
	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			csrfGuard.Middleware(resolver.Middleware(mux))))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func bootstrapAdmin(repo *user.Repository, credentials auth.Credentials) error {
	email := strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL")))
	password := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))

	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	hash, err := credentials.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if err := repo.EnsureAdmin(context.Background(), email, "admin", hash); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	return nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
