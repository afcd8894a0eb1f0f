package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/lakonic/taskdeck/api"
	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/datastore"
	"github.com/lakonic/taskdeck/delivery"
	"github.com/lakonic/taskdeck/models"
	rh "github.com/lakonic/taskdeck/route-handlers"
	"github.com/lakonic/taskdeck/scheduler"
)

const (
	defaultPort        = "8080"
	defaultDatabaseURL = "user=postgres password=password dbname=taskdeck host=localhost port=5432 sslmode=disable"
	defaultBaseURL     = "http://localhost:8080"
	defaultMailServer  = "smtp.qq.com"
	defaultMailPort    = 587
	defaultMailSender  = "noreply@taskdeck.dev"
	dbPingTimeout      = 5 * time.Second
	shutdownTimeout    = 15 * time.Second
	dbMaxOpenConns     = 25
	dbMaxIdleConns     = 25
	dbConnMaxLifetime  = 5 * time.Minute
)

type config struct {
	port             string
	databaseURL      string
	baseURL          string
	corsEnabled      bool
	allowedOrigins   []string
	mailServer       string
	mailPort         int
	mailUsername     string
	mailPassword     string
	mailSender       string
	mailEnabled      bool
	reminderStrategy scheduler.Strategy
	reminderInterval time.Duration
	adminUsername    string
	adminPassword    string
	adminEmail       string
	bootstrapAdmin   bool
}

func main() {
	cfg := loadConfig()

	db, err := setupDatabase(cfg.databaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	userRepo := datastore.NewUserRepository(db)
	todoRepo := datastore.NewTodoRepository(db)

	if cfg.bootstrapAdmin {
		if err := bootstrapAdmin(context.Background(), userRepo, cfg); err != nil {
			log.Fatalf("Admin bootstrap failed: %v", err)
		}
	}

	// Session and reset-token state is process-local. Running more than one
	// instance duplicates reminders and scatters sessions; back these with a
	// shared store before scaling out.
	sessionManager := auth.NewSessionManager(auth.NewMemorySessionStore())
	resetService := auth.NewResetService(auth.NewMemoryResetTokenStore())

	mailer := delivery.NewSMTPMailer(
		cfg.mailServer, cfg.mailPort, cfg.mailUsername, cfg.mailPassword,
		cfg.mailSender, cfg.mailEnabled,
	)

	authHandler := rh.NewAuthHandler(userRepo, sessionManager)
	todoHandler := rh.NewTodoHandler(todoRepo)
	passwordHandler := rh.NewPasswordResetHandler(userRepo, resetService, mailer, cfg.baseURL)
	adminHandler := rh.NewAdminHandler(userRepo, todoRepo, mailer)
	reminderHandler := rh.NewReminderHandler(userRepo, todoRepo, mailer, cfg.baseURL, cfg.mailEnabled)

	corsCfg := api.CORSConfig{
		Enabled:        cfg.corsEnabled,
		AllowedOrigins: cfg.allowedOrigins,
	}
	apiRouter := api.SetupRoutes(
		corsCfg,
		sessionManager,
		authHandler,
		todoHandler,
		passwordHandler,
		adminHandler,
		reminderHandler,
	)

	reminderScheduler := scheduler.New(
		userRepo,
		todoRepo,
		mailer,
		scheduler.NewMemoryDedupStore(),
		scheduler.Options{
			Strategy:     cfg.reminderStrategy,
			WakeInterval: cfg.reminderInterval,
			AppURL:       cfg.baseURL,
			MailEnabled:  cfg.mailEnabled,
		},
	)

	mainRouter := chi.NewRouter()
	mainRouter.Mount("/", apiRouter)
	mainRouter.Post("/scheduler/tick", reminderScheduler.HandleTick)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go reminderScheduler.Run(schedulerCtx)

	startServer(cfg.port, mainRouter)
	stopScheduler()
}

func loadConfig() config {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		dbURL = defaultDatabaseURL
		log.Println("WARNING: DB_CONNECTION_STRING not set, using default local connection string.")
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	mailUsername := os.Getenv("MAIL_USERNAME")
	mailPassword := os.Getenv("MAIL_PASSWORD")
	mailEnabled := getEnvBool("MAIL_ENABLED", true)
	if mailEnabled && (mailUsername == "" || mailPassword == "") {
		log.Println("WARNING: MAIL_USERNAME/MAIL_PASSWORD not set. Mail delivery will fail at runtime.")
	}

	mailSender := os.Getenv("MAIL_DEFAULT_SENDER")
	if mailSender == "" {
		mailSender = defaultMailSender
	}

	mailServer := os.Getenv("MAIL_SERVER")
	if mailServer == "" {
		mailServer = defaultMailServer
	}

	strategy := scheduler.Strategy(os.Getenv("REMINDER_STRATEGY"))
	switch strategy {
	case scheduler.StrategyEveryHour, scheduler.StrategyPreferredTime:
	case "":
		strategy = scheduler.StrategyEveryHour
	default:
		log.Printf("WARNING: Unknown REMINDER_STRATEGY %q, falling back to %s.", strategy, scheduler.StrategyEveryHour)
		strategy = scheduler.StrategyEveryHour
	}

	return config{
		port:             port,
		databaseURL:      dbURL,
		baseURL:          baseURL,
		corsEnabled:      getEnvBool("CORS_ENABLED", true),
		allowedOrigins:   splitList(getEnvDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		mailServer:       mailServer,
		mailPort:         getEnvInt("MAIL_PORT", defaultMailPort),
		mailUsername:     mailUsername,
		mailPassword:     mailPassword,
		mailSender:       mailSender,
		mailEnabled:      mailEnabled,
		reminderStrategy: strategy,
		reminderInterval: time.Duration(getEnvInt("REMINDER_WAKE_INTERVAL_SEC", 60)) * time.Second,
		adminUsername:    getEnvDefault("ADMIN_USERNAME", "admin"),
		adminPassword:    os.Getenv("ADMIN_PASSWORD"),
		adminEmail:       getEnvDefault("ADMIN_EMAIL", "admin@example.com"),
		bootstrapAdmin:   getEnvBool("ADMIN_BOOTSTRAP", true),
	}
}

func setupDatabase(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close() // Close unusable connection pool
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := datastore.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Database connection successful")
	return db, nil
}

// bootstrapAdmin seeds the first administrator account when none exists yet.
func bootstrapAdmin(ctx context.Context, users *datastore.UserRepository, cfg config) error {
	if _, err := users.GetUserByUsername(ctx, cfg.adminUsername); err == nil {
		return nil
	}

	if cfg.adminPassword == "" {
		log.Println("WARNING: ADMIN_PASSWORD not set, skipping admin bootstrap.")
		return nil
	}

	passwordHash, err := auth.HashPassword(cfg.adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	admin := models.User{
		Username:     cfg.adminUsername,
		PasswordHash: passwordHash,
		Email:        cfg.adminEmail,
		IsAdmin:      true,
		ReminderTime: models.DefaultReminderTime,
	}
	err = users.CreateUser(ctx, &admin)
	switch {
	case err == nil:
		log.Printf("Bootstrap admin account %q created", cfg.adminUsername)
		return nil
	case errors.Is(err, datastore.ErrDuplicateUsername), errors.Is(err, datastore.ErrDuplicateEmail):
		// Another instance won the race; nothing to do.
		return nil
	default:
		return err
	}
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal // Block until signal received
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARNING: %s=%q is not an integer, using %d.", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true", "1", "t", "yes":
		return true
	case "false", "0", "f", "no":
		return false
	default:
		log.Printf("WARNING: %s=%q is not a boolean, using %t.", key, v, fallback)
		return fallback
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
