// cmd/zentecd/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/config"
	"github.com/tamzrod/zentec-bridge/internal/device"
	"github.com/tamzrod/zentec-bridge/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "zentec.yaml", "path to the YAML config (see zentec.example.yaml)")
	check := flag.Bool("check", false, "connect to the controller once and exit")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, levelOK := logging.New(cfg.Log, os.Stderr)
	if !levelOK {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, using info")
	}

	if *check {
		os.Exit(runCheck(*cfg, log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	// --------------------
	// Session lifecycle
	// --------------------

	s, err := startSession(ctx, *cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			log.Info().Msg("stopped")
			return

		case <-hup:
			next, err := config.Load(*cfgPath)
			if err != nil {
				log.Error().Err(err).Msg("reload failed, keeping running config")
				continue
			}
			log.Info().Str("config", *cfgPath).Msg("reloading")

			s.Stop()
			log, _ = logging.New(next.Log, os.Stderr)
			s, err = startSession(ctx, *next, log)
			if err != nil {
				log.Fatal().Err(err).Msg("restart after reload failed")
			}
		}
	}
}

// runCheck connects once, as a setup flow would before accepting the config.
func runCheck(cfg config.Config, log zerolog.Logger) int {
	dlog := deviceLogger(cfg, log)

	dev, err := device.Build(cfg, logging.Component(dlog, "device"))
	if err != nil {
		dlog.Error().Err(err).Msg("device build failed")
		return 1
	}
	defer dev.Close()

	if err := dev.Probe(); err != nil {
		dlog.Error().Err(err).Msg("cannot connect")
		return 1
	}
	dlog.Info().Msg("connection ok")
	return 0
}
