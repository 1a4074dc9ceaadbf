package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"regexp"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/mattn/go-sqlite3"

	"github.com/marketdesk/chatcore/server/adaptor"
	"github.com/marketdesk/chatcore/server/domain"
	"github.com/marketdesk/chatcore/server/repository"
	"github.com/marketdesk/chatcore/server/usecase"
)

const shutdownTimeout = 10 * time.Second

func regex(re, s string) (bool, error) {
	return regexp.MatchString(re, s)
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	setupLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./chatcore.db"
	}

	sql.Register("sqlite3_with_go_func",
		&sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("regexp", regex, true)
			},
		})
	conn, err := sql.Open("sqlite3_with_go_func", dbPath)
	if err != nil {
		slog.Error("failed to open db", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	if err := repository.Migrate(conn); err != nil {
		slog.Error("failed to migrate db", "error", err)
		os.Exit(1)
	}

	registry := domain.NewRegistry()
	typing := domain.NewTypingTracker(registry, domain.DefaultTypingTTL)
	repo := repository.NewRepository(conn)
	uc := usecase.NewUsecase(repo, registry, typing)
	ad := adaptor.NewAdaptor(uc, registry)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	ad.RegisterRoutes(app)

	go func() {
		slog.Info("server starting", "port", port, "db", dbPath)
		if err := app.Listen(":" + port); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return app.ShutdownWithContext(ctx)
			},
			"registry": func(ctx context.Context) error {
				return registry.Cleanup()
			},
		},
	)

	exitCode := <-wait
	slog.Info("server stopped", "code", exitCode)
	os.Exit(exitCode)
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
