package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/marmos91/marble/internal/logger"
	"github.com/marmos91/marble/pkg/auth"
	"github.com/marmos91/marble/pkg/blob"
	"github.com/marmos91/marble/pkg/config"
	"github.com/marmos91/marble/pkg/db"
	"github.com/marmos91/marble/pkg/server"
	"github.com/marmos91/marble/pkg/storage"
	"github.com/marmos91/marble/pkg/webdav"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override configured log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	// "init" writes a commented default config file and exits. It runs
	// before Load so a malformed existing file can still be regenerated.
	if args := flag.Args(); len(args) > 0 && args[0] == "init" {
		if err := runInit(*configPath, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "marble-webdav: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marble-webdav: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database %s: %v", cfg.Database.Path, err)
		os.Exit(1)
	}
	defer database.Close()

	// "adduser <username>" provisions an account and exits.
	if args := flag.Args(); len(args) > 0 {
		if err := runCommand(ctx, database, args); err != nil {
			fmt.Fprintf(os.Stderr, "marble-webdav: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, database); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, database *db.Database) error {
	store, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Info("blob store: %s", cfg.Blob.Type)

	facade := storage.NewTenantStorage(database, blob.NewHasher(store))

	handler, err := webdav.NewHandler(webdav.HandlerConfig{
		Storage:            facade,
		Auth:               auth.NewService(database.Users),
		Locks:              webdav.NewLockManager(cfg.WebDAV.MaxLockTimeout),
		AllowDepthInfinity: cfg.WebDAV.AllowDepthInfinity,
		MaxBodyBytes:       cfg.WebDAV.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	logTenantSummary(ctx, database)

	srv := server.New(server.Config{
		ListenAddress:   cfg.Server.ListenAddress,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler)

	return srv.Serve(ctx)
}

// logTenantSummary logs one line per tenant at startup. Failures here are
// cosmetic and never block serving.
func logTenantSummary(ctx context.Context, database *db.Database) {
	users, err := database.Users.List(ctx)
	if err != nil {
		logger.Warn("failed to list tenants: %v", err)
		return
	}

	logger.Info("%d tenant(s) provisioned", len(users))
	for _, user := range users {
		count, err := database.Files.CountByUser(ctx, user.ID)
		if err != nil {
			logger.Warn("failed to count files for %s: %v", user.Username, err)
			continue
		}
		logger.Info("  %s: %d file(s)", user.Username, count)
	}
}

// runInit writes a default config file, honoring -config for the target
// path.
func runInit(configPath string, args []string) error {
	force := false
	switch {
	case len(args) == 0:
	case len(args) == 1 && (args[0] == "--force" || args[0] == "-f"):
		force = true
	default:
		return fmt.Errorf("usage: marble-webdav init [--force]")
	}

	path := configPath
	if path == "" {
		var err error
		path, err = config.InitConfig(force)
		if err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, force); err != nil {
		return err
	}

	fmt.Printf("wrote default config to %s\n", path)
	return nil
}

func runCommand(ctx context.Context, database *db.Database, args []string) error {
	switch args[0] {
	case "adduser":
		if len(args) != 2 {
			return fmt.Errorf("usage: marble-webdav adduser <username>")
		}
		return addUser(ctx, database, args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// addUser provisions a tenant account, reading the password from stdin.
func addUser(ctx context.Context, database *db.Database, username string) error {
	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &db.User{
		UUID:         uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := database.Users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("created %s (tenant %s)\n", user.Username, user.UUID)
	return nil
}

func setupLogging(cfg *config.Config) {
	logger.SetLevel(cfg.Logging.Level)

	switch cfg.Logging.Output {
	case "", "stdout":
		// package default
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marble-webdav: failed to open log file: %v\n", err)
			os.Exit(1)
		}
		logger.SetOutput(file)
	}
}
