package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/five82/olhovivo/internal/config"
	"github.com/five82/olhovivo/internal/logging"
	"github.com/five82/olhovivo/internal/prefs"
	"github.com/five82/olhovivo/internal/sptrans"
	"github.com/five82/olhovivo/internal/state"
	"github.com/five82/olhovivo/internal/ui"
)

// Options configure the olhovivo application.
type Options struct {
	ConfigPath string
	EnvFile    string
	PrefsPath  string // empty uses default ~/.config/olhovivo/prefs.toml
	PollEvery  int    // seconds; zero uses the config value

	// BaseURL and Token override the config when set.
	BaseURL string
	Token   string

	// Args selects one-shot query mode when non-empty.
	Args []string
	Out  io.Writer
}

// Run loads configuration and either answers a single query or runs the
// TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger, closer, err := logging.Open(cfg.LogFile, level)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logging.SafeCloseWithLogging(closer, logger, "log_file")
	ctx = logging.WithLogger(ctx, logger)

	client, err := newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("init olho vivo client: %w", err)
	}
	logger.Info("olhovivo starting",
		slog.String("base_url", client.BaseURL()),
		slog.Bool("token", cfg.HasToken()),
		slog.Bool("query", len(opts.Args) > 0))

	if len(opts.Args) > 0 {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		return Query(ctx, out, client, opts.Args)
	}

	store := &state.Store{}
	StartPoller(ctx, store, client, cfg.PollInterval)

	userPrefs := prefs.Load(opts.PrefsPath)
	warning := ""
	if !cfg.HasToken() {
		warning = "no API token configured (set " + config.EnvToken + ")"
	}

	return ui.Run(ui.Options{
		Context:   ctx,
		Fetcher:   client,
		Store:     store,
		PollTick:  cfg.PollInterval,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		LogPath:   cfg.LogFile,
		Warning:   warning,
		Logger:    logger,
	})
}

func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Token != "" {
		cfg.Token = opts.Token
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newClient(cfg config.Config, logger *slog.Logger) (*sptrans.Client, error) {
	return sptrans.NewClient(cfg.BaseURL, cfg.Token,
		sptrans.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		}),
		sptrans.WithLogger(logger),
		sptrans.WithRateLimit(cfg.RequestsPerSecond),
		sptrans.WithReauthenticate(cfg.Reauthenticate),
	)
}
