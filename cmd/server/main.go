package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/blukai/skeldparty/internal/lobbyserver"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	LobbyServerAddr4    string        `envconfig:"LOBBY_SERVER_ADDR4" required:"true" default:"0.0.0.0:22023"`
	LobbyMetricsAddr    string        `envconfig:"LOBBY_METRICS_ADDR"`
	LobbyResendInterval time.Duration `envconfig:"LOBBY_RESEND_INTERVAL" default:"1500ms"`
	LobbyMaxAttempts    int           `envconfig:"LOBBY_MAX_ATTEMPTS" default:"8"`
	LobbyIdleTimeout    time.Duration `envconfig:"LOBBY_IDLE_TIMEOUT" default:"10s"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger(level string) *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Level = log.ParseLevel(level)
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger(config.LogLevel)

	lobbyServer, err := lobbyserver.NewLobbyServer(lobbyserver.Config{
		Network:        "udp4",
		Address:        config.LobbyServerAddr4,
		MetricsAddr:    config.LobbyMetricsAddr,
		ResendInterval: config.LobbyResendInterval,
		MaxAttempts:    config.LobbyMaxAttempts,
		IdleTimeout:    config.LobbyIdleTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not construct lobby server: %w", err)
	}
	logger.Info().Msgf("started lobby server on %s", lobbyServer.Addr())
	if config.LobbyMetricsAddr != "" {
		logger.Info().Msgf("serving metrics on %s", config.LobbyMetricsAddr)
	}

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var lobbyServerRunErr error
	go func() {
		defer wg.Done()
		lobbyServerRunErr = lobbyServer.Run(ctx)
		// a failed server ends the process as well
		cancel()
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-signalChan:
		logger.Info().Msgf("received %+v signal", sig)
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	if lobbyServerRunErr != nil {
		return fmt.Errorf("lobby server run failed: %w", lobbyServerRunErr)
	}

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
