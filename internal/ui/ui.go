package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/olhovivo/internal/logging"
	"github.com/five82/olhovivo/internal/prefs"
	"github.com/five82/olhovivo/internal/sptrans"
	"github.com/five82/olhovivo/internal/state"
)

// Options configure the UI runtime.
type Options struct {
	Context   context.Context
	Fetcher   sptrans.Fetcher
	Store     *state.Store
	PollTick  time.Duration // vehicle poll interval, shown in the header
	Prefs     prefs.Prefs
	PrefsPath string // empty uses the prefs default
	LogPath   string
	Warning   string // shown in the header, e.g. a missing token
	Logger    *slog.Logger
}

const (
	uiRefreshInterval = time.Second
	requestTimeout    = 15 * time.Second
	logTailLines      = 400
)

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	if opts.Store == nil {
		return errors.New("ui requires a vehicle store")
	}
	if opts.Fetcher == nil {
		return errors.New("ui requires an olho vivo client")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Discard()
}
