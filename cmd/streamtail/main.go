// streamtail follows a document stream and prints each snapshot to stdout
// as one JSON line. Settings come from an optional TOML config file with
// flags taking precedence.
//
// Usage:
//
//	streamtail -endpoint ws://feeds.local/live/board
//	streamtail -config streamtail.toml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	docstream "github.com/docstream/docstream.go"
	"github.com/docstream/docstream.go/pkg/connection"
	"github.com/docstream/docstream.go/pkg/logger"
	"github.com/docstream/docstream.go/pkg/logger/zero"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	endpoint := flag.String("endpoint", "", "stream endpoint (overrides config)")
	pretty := flag.Bool("pretty", false, "human-readable console logs")
	flag.Parse()

	if err := run(*configPath, *endpoint, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "streamtail: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, endpoint string, pretty bool) error {
	cfg, err := resolveConfig(configPath, endpoint, pretty)
	if err != nil {
		return err
	}

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(cfg.LogLevel)
	if cfg.Pretty {
		zl = zl.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log := logger.New(zero.NewHandler(zl))

	registry := connection.NewRegistry(connection.WithLogger(log))
	defer registry.CloseAll()

	enc := json.NewEncoder(os.Stdout)
	exit := make(chan struct{}, 1)

	session := docstream.NewSession[map[string]any](registry, docstream.Options[map[string]any]{
		InitialData: func() map[string]any { return map[string]any{} },
		Backoff:     cfg.Backoff,
		Logger:      log,
		OnUpdate: func(doc map[string]any) {
			if err := enc.Encode(doc); err != nil {
				log.Error("encode snapshot", "err", err)
			}
		},
		OnStateChange: func(st docstream.State) {
			log.Info("stream state", "state", st.String())
			if st.Terminal() {
				select {
				case exit <- struct{}{}:
				default:
				}
			}
		},
	})

	if err := session.Enable(cfg.Endpoint); err != nil {
		return err
	}
	defer session.Disable()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("interrupted")
	case <-exit:
	}
	return nil
}
