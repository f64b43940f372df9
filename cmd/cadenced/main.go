// Cadenced is the metronome and practice daemon.
//
// It loads configuration, opens the audio device, and serves the HTTP API
// and WebSocket event stream that cadencectl and other clients drive.
// Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/cadence/internal/app"
	"github.com/large-farva/cadence/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", config.DefaultPath, "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		noAudio    = pflag.Bool("no-audio", false, "Run without opening the audio device")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *noAudio {
		cfg.Audio.Enabled = false
	}

	logger := log.New(os.Stdout, "cadenced ", log.LstdFlags|log.Lmicroseconds)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("cadenced failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
