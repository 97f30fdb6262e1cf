package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/SurveyPipe/internal/api"
	"github.com/BTreeMap/SurveyPipe/internal/genai"
	"github.com/BTreeMap/SurveyPipe/internal/lockfile"
	"github.com/BTreeMap/SurveyPipe/internal/messaging"
	"github.com/BTreeMap/SurveyPipe/internal/registry"
	"github.com/BTreeMap/SurveyPipe/internal/store"
	"github.com/BTreeMap/SurveyPipe/internal/survey"
	"github.com/BTreeMap/SurveyPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/SurveyPipe/internal/util"
	"github.com/BTreeMap/SurveyPipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SurveyPipe state data
	DefaultStateDir = "/var/lib/surveypipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "surveypipe.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultSurveyID is the survey started for first-contact messaging sessions
	DefaultSurveyID = "CULTURE_DISCRIMINATION"
	// TwilioWebhookPath receives inbound Twilio WhatsApp messages
	TwilioWebhookPath = "/webhooks/twilio"
)

func main() {
	// Load .env before the logger so SURVEYPIPE_DEBUG from the file takes effect.
	dotenvErr := godotenv.Load()

	initializeLogger()

	if dotenvErr != nil {
		slog.Debug("failed to load .env file", "error", dotenvErr)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("SurveyPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("SurveyPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseDSN   string
	WhatsAppDSN   string
	OpenAIKey     string
	OpenAIModel   string
	APIAddr       string
	SurveyDir     string
	Channel       string
	DefaultSurvey string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	waDSN         *string
	openaiKey     *string
	openaiModel   *string
	apiAddr       *string
	surveyDir     *string
	channel       *string
	defaultSurvey *string
	qrOutput      *string
	numeric       *bool
}

// initializeLogger sets up structured logging; SURVEYPIPE_DEBUG enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SURVEYPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables
func loadEnvironmentConfig() Config {
	config := Config{
		StateDir:      os.Getenv("SURVEYPIPE_STATE_DIR"),
		DatabaseDSN:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		APIAddr:       os.Getenv("SURVEYPIPE_API_ADDR"),
		SurveyDir:     os.Getenv("SURVEYPIPE_SURVEY_DIR"),
		Channel:       os.Getenv("SURVEYPIPE_CHANNEL"),
		DefaultSurvey: os.Getenv("SURVEYPIPE_DEFAULT_SURVEY"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SURVEYPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DefaultSurvey == "" {
		config.DefaultSurvey = DefaultSurveyID
	}

	slog.Debug("environment variables loaded",
		"SURVEYPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"SURVEYPIPE_API_ADDR", config.APIAddr,
		"SURVEYPIPE_SURVEY_DIR", config.SurveyDir,
		"SURVEYPIPE_CHANNEL", config.Channel,
		"SURVEYPIPE_DEFAULT_SURVEY", config.DefaultSurvey)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for SurveyPipe data (overrides $SURVEYPIPE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseDSN, "session store DSN: SQLite path, postgres://, or redis:// (overrides $DATABASE_URL)"),
		waDSN:         flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $SURVEYPIPE_API_ADDR)"),
		surveyDir:     flag.String("survey-dir", config.SurveyDir, "directory of additional survey definition YAML files (overrides $SURVEYPIPE_SURVEY_DIR)"),
		channel:       flag.String("channel", config.Channel, "messaging channel: twilio, whatsapp, or empty for API-only (overrides $SURVEYPIPE_CHANNEL)"),
		defaultSurvey: flag.String("default-survey", config.DefaultSurvey, "survey started for first-contact messaging sessions (overrides $SURVEYPIPE_DEFAULT_SURVEY)"),
		qrOutput:      flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
	}

	flag.Parse()

	// With no DSN, sessions persist to SQLite in the state directory.
	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No session store DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}
	if *flags.waDSN == "" {
		*flags.waDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"surveyDir", *flags.surveyDir,
		"channel", *flags.channel,
		"defaultSurvey", *flags.defaultSurvey)

	return flags
}

// run wires the configured modules together and serves until ctx is canceled.
func run(ctx context.Context, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	sessions, err := buildSessionStore(flags)
	if err != nil {
		return err
	}
	defer sessions.Close()

	reg, err := registry.New()
	if err != nil {
		return err
	}
	if *flags.surveyDir != "" {
		if err := reg.LoadDir(*flags.surveyDir); err != nil {
			return err
		}
	}
	slog.Info("Survey registry ready", "surveys", len(reg.List()))

	gen, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	engine := survey.NewEngine(sessions, reg, gen, survey.WithModerator(gen))

	apiOpts := buildAPIOptions(flags)

	switch *flags.channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return err
		}
		service := messaging.NewTwilioService(client)
		responder := messaging.NewResponder(service, engine, *flags.defaultSurvey)
		if err := responder.Start(ctx); err != nil {
			return err
		}
		apiOpts = append(apiOpts, api.WithRoute(http.MethodPost, TwilioWebhookPath, service.WebhookHandler))
		slog.Info("Twilio WhatsApp channel enabled", "webhook_path", TwilioWebhookPath, "default_survey", *flags.defaultSurvey)
	case "whatsapp":
		client, err := whatsapp.NewClient(buildWhatsAppOptions(flags)...)
		if err != nil {
			return err
		}
		service := messaging.NewWhatsAppService(client)
		responder := messaging.NewResponder(service, engine, *flags.defaultSurvey)
		if err := responder.Start(ctx); err != nil {
			return err
		}
		slog.Info("WhatsApp channel enabled", "default_survey", *flags.defaultSurvey)
	case "":
		slog.Info("No messaging channel configured, running API-only")
	default:
		slog.Warn("Unknown messaging channel, running API-only", "channel", *flags.channel)
	}

	server := api.NewServer(engine, reg, gen, apiOpts...)
	return server.Run(ctx)
}

// buildSessionStore selects a session store backend from the DSN
func buildSessionStore(flags Flags) (store.SessionStore, error) {
	switch store.DetectDSNType(*flags.dbDSN) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgres")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case "redis":
		slog.Debug("Detected Redis DSN, configuring Redis store", "dsn_type", "redis")
		return store.NewRedisStore(store.WithRedisAddr(*flags.dbDSN))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
