package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/olhovivo/internal/app"
	"github.com/five82/olhovivo/internal/fakeapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	envFile := flag.String("env", ".env", "dotenv file with OLHOVIVO_TOKEN (optional)")
	prefsPath := flag.String("prefs", "", "override UI preferences path (optional)")
	pollSeconds := flag.Int("poll", 0, "vehicle refresh interval in seconds (optional, defaults to 15s)")
	fake := flag.Bool("fake", false, "serve built-in sample data instead of calling Olho Vivo")
	flag.Usage = usage
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		EnvFile:    *envFile,
		PrefsPath:  *prefsPath,
		Args:       flag.Args(),
		Out:        os.Stdout,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if *fake {
		demo, err := fakeapi.Listen()
		if err != nil {
			fmt.Fprintf(os.Stderr, "olhovivo: start fake api: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			_ = demo.Shutdown(shutdownCtx)
		}()
		opts.BaseURL = demo.BaseURL
		opts.Token = demo.Token
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "olhovivo: %v\n", err)
		if errors.Is(err, app.ErrUsage) {
			flag.Usage()
			return 2
		}
		return 1
	}
	return 0
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: olhovivo [flags] [command args...]\n\n")
	fmt.Fprintf(out, "Without a command, olhovivo opens the interactive dashboard.\n\nCommands:\n")
	for _, c := range app.Commands {
		fmt.Fprintf(out, "  %-12s %-24s %s\n", c.Name, c.Args, c.Help)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}
