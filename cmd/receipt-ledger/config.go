package main

import (
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/notify"
	"github.com/zombor/receipt-ledger/internal/receipt"
)

type config struct {
	port        int
	publicURL   string
	dbPath      string
	storageKind string
	storagePath string
	s3          receipt.S3Config
	gcsBucket   string

	scannerType string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string

	authUser  string
	authPass  string
	jwtSecret string
	tokenTTL  time.Duration
	linkTTL   time.Duration

	amqpURL          string
	amqpExchange     string
	amqpQueue        string
	reminderSchedule string
	weeklyBudget     decimal.Decimal

	showVersion bool
}

func newFlagSet(cfg *config, weeklyBudget *string) *ff.FlagSet {
	fs := ff.NewFlagSet("receipt-ledger")
	fs.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.publicURL, 0, "public-url", "", "Base URL for file links (default http://localhost:<port>)")
	fs.StringVar(&cfg.dbPath, 0, "db", "receipt-ledger.db", "Database file path")
	fs.StringVar(&cfg.storageKind, 0, "storage", "local", "Receipt storage: 'local', 's3' or 'gcs'")
	fs.StringVar(&cfg.storagePath, 0, "storage-path", "./receipts", "Local storage directory")
	fs.StringVar(&cfg.s3.Bucket, 0, "s3-bucket", "", "S3 bucket name")
	fs.StringVar(&cfg.s3.Region, 0, "s3-region", "us-east-1", "S3 region")
	fs.StringVar(&cfg.s3.Endpoint, 0, "s3-endpoint", "", "S3-compatible endpoint (e.g. MinIO)")
	fs.StringVar(&cfg.s3.AccessKey, 0, "s3-access-key", "", "S3 access key (default credential chain when empty)")
	fs.StringVar(&cfg.s3.SecretKey, 0, "s3-secret-key", "", "S3 secret key")
	fs.StringVar(&cfg.gcsBucket, 0, "gcs-bucket", "", "Google Cloud Storage bucket name")

	fs.StringVar(&cfg.scannerType, 0, "scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")

	fs.StringVar(&cfg.authUser, 0, "auth-user", "", "Username accepted by the token endpoint")
	fs.StringVar(&cfg.authPass, 0, "auth-pass", "", "Password accepted by the token endpoint")
	fs.StringVar(&cfg.jwtSecret, 0, "jwt-secret", "", "HMAC secret for access tokens and file links")
	fs.DurationVar(&cfg.tokenTTL, 0, "token-ttl", time.Hour, "Access token lifetime")
	fs.DurationVar(&cfg.linkTTL, 0, "link-ttl", receipt.DefaultLinkTTL, "Download link lifetime")

	fs.StringVar(&cfg.amqpURL, 0, "amqp-url", "", "AMQP broker URL for reminders (log only when empty)")
	fs.StringVar(&cfg.amqpExchange, 0, "amqp-exchange", "receipt-ledger", "AMQP exchange name")
	fs.StringVar(&cfg.amqpQueue, 0, "amqp-queue", "weekly-reminders", "AMQP queue and routing key")
	fs.StringVar(&cfg.reminderSchedule, 0, "reminder-schedule", notify.DefaultSchedule, "Cron schedule for weekly reminders (UTC)")
	fs.StringVar(weeklyBudget, 0, "weekly-budget", "500", "Default weekly budget")

	fs.BoolVar(&cfg.showVersion, 0, "version", "Show version information")
	return fs
}

func parseConfig(args []string) (*config, *ff.FlagSet, error) {
	cfg := &config{}
	var weeklyBudget string
	fs := newFlagSet(cfg, &weeklyBudget)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("RECEIPT_LEDGER")); err != nil {
		return nil, fs, err
	}

	budget, err := decimal.NewFromString(weeklyBudget)
	if err != nil || budget.IsNegative() {
		return nil, fs, fmt.Errorf("invalid --weekly-budget %q", weeklyBudget)
	}
	cfg.weeklyBudget = budget

	if cfg.publicURL == "" {
		cfg.publicURL = fmt.Sprintf("http://localhost:%d", cfg.port)
	}
	return cfg, fs, nil
}
