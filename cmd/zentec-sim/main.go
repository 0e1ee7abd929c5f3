// cmd/zentec-sim/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tamzrod/zentec-bridge/internal/config"
	"github.com/tamzrod/zentec-bridge/internal/device"
	"github.com/tamzrod/zentec-bridge/internal/logging"
	"github.com/tamzrod/zentec-bridge/internal/simulator"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:5020", "host:port to serve Modbus TCP on")
	cfgPath := flag.String("config", "", "bridge config whose register map and scaling to simulate")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	cfg.Log.Format = "console"

	log, _ := logging.New(cfg.Log, os.Stderr)

	m, err := device.BuildMap(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("register map")
	}

	sim := simulator.New(log)
	if err := sim.Seed(m, device.BuildScale(cfg.Scaling)); err != nil {
		log.Fatal().Err(err).Msg("seed")
	}
	if err := sim.Listen(*listen); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	defer sim.Close()

	log.Info().Msg("hit Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
