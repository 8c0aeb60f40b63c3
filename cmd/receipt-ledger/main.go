package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/receipt-ledger/internal/auth"
	"github.com/zombor/receipt-ledger/internal/notify"
	"github.com/zombor/receipt-ledger/internal/receipt"
	"github.com/zombor/receipt-ledger/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}

	cfg, flags, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shut down cleanly")
}

func run(ctx context.Context, cfg *config) error {
	slog.Info("Initializing database...", "path", cfg.dbPath)
	db, err := receipt.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		return err
	}
	defer scanner.Close()

	store, closeStore, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	secret := cfg.jwtSecret
	if secret == "" {
		secret = randomSecret()
		slog.Warn("No --jwt-secret set; using a random secret, tokens will not survive a restart")
	}
	issuer := auth.NewIssuer([]byte(secret), cfg.tokenTTL)

	service := receipt.NewService(db, scanner, store, issuer, receipt.Config{
		PublicURL: cfg.publicURL,
		LinkTTL:   cfg.linkTTL,
	})

	basicAuth := receipt.BasicAuth{Username: cfg.authUser, Password: cfg.authPass}
	server := receipt.NewServer(service, issuer, basicAuth)
	if cfg.authUser == "" && cfg.authPass == "" {
		slog.Warn("No --auth-user set; the token endpoint accepts any user name")
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	scheduler, err := notify.NewScheduler(cfg.reminderSchedule, notify.NewJob(service, publisher, cfg.weeklyBudget))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, fmt.Sprintf(":%d", cfg.port))
	})
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	slog.Info("Server started", "address", cfg.publicURL, "storage", cfg.storageKind, "scanner", cfg.scannerType)
	return g.Wait()
}

func newScanner(ctx context.Context, cfg *config) (scanning.Scanner, error) {
	switch cfg.scannerType {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		scanner, err := scanning.NewGemini(ctx, apiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return scanner, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		scanner, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return scanner, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: valid values are gemini or ollama", cfg.scannerType)
	}
}

func newStorage(ctx context.Context, cfg *config) (receipt.Storage, func() error, error) {
	noop := func() error { return nil }
	switch cfg.storageKind {
	case "local":
		slog.Info("Initializing local storage...", "path", cfg.storagePath)
		store, err := receipt.NewLocalStorage(cfg.storagePath)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing storage: %w", err)
		}
		return store, noop, nil
	case "s3":
		slog.Info("Initializing S3 storage...", "bucket", cfg.s3.Bucket, "region", cfg.s3.Region)
		store, err := receipt.NewS3Storage(ctx, cfg.s3)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing s3: %w", err)
		}
		return store, noop, nil
	case "gcs":
		slog.Info("Initializing GCS storage...", "bucket", cfg.gcsBucket)
		store, err := receipt.NewGCSStorage(ctx, cfg.gcsBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing gcs: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid storage type %q: valid values are local, s3 or gcs", cfg.storageKind)
	}
}

func newPublisher(cfg *config) (notify.Publisher, error) {
	if cfg.amqpURL == "" {
		return notify.LogPublisher{}, nil
	}
	slog.Info("Connecting to AMQP broker...", "exchange", cfg.amqpExchange, "queue", cfg.amqpQueue)
	p, err := notify.NewAMQPPublisher(cfg.amqpURL, cfg.amqpExchange, cfg.amqpQueue)
	if err != nil {
		return nil, fmt.Errorf("initializing amqp: %w", err)
	}
	return p, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
