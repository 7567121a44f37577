// Command client is a headless player. It hosts a game, or joins the one
// LOBBY_GAME_CODE names, loads in and logs what happens in the room.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/blukai/skeldparty/internal/lobbyclient"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	LobbyServerAddr4 string `envconfig:"LOBBY_SERVER_ADDR4" required:"true" default:"127.0.0.1:22023"`
	LobbyUsername    string `envconfig:"LOBBY_USERNAME" default:"bot"`
	// LobbyGameCode is the game to join; empty hosts a new one.
	LobbyGameCode  string        `envconfig:"LOBBY_GAME_CODE"`
	ConnectTimeout time.Duration `envconfig:"LOBBY_CONNECT_TIMEOUT" default:"5s"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
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

func playerName(p *room.PlayerData) string {
	if p == nil {
		return "?"
	}
	if info := p.Info(); info != nil && info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("client %d", p.ClientID())
}

// watch logs the room's events.
func watch(r *room.Room, logger *log.Logger) {
	events := r.Events()

	emitter.On(events, func(e room.PlayerJoinEvent) {
		logger.Info().Int32("client_id", e.Player.ClientID()).Msg("player joined")
	})
	emitter.On(events, func(e room.PlayerLeaveEvent) {
		logger.Info().Int32("client_id", e.Player.ClientID()).Msg("player left")
	})
	emitter.On(events, func(e room.HostChangeEvent) {
		logger.Info().Int32("from", e.From).Int32("to", e.To).Msg("host changed")
	})
	emitter.On(events, func(e room.PlayerSetNameEvent) {
		logger.Info().Int32("client_id", e.Player.ClientID()).Str("name", e.Name).Msg("player named")
	})
	emitter.On(events, func(e room.PlayerChatEvent) {
		logger.Info().Str("from", playerName(e.Player)).Msg(e.Message)
	})
	emitter.On(events, func(e room.PlayerMurderEvent) {
		logger.Info().Str("murderer", playerName(e.Murderer)).Str("victim", playerName(e.Victim)).Msg("murder")
	})
	emitter.On(events, func(e room.MeetingEvent) {
		logger.Info().Str("caller", playerName(e.Caller)).Uint8("body_id", e.BodyID).Msg("meeting called")
	})
	emitter.On(events, func(e room.VotingCompleteEvent) {
		logger.Info().Uint8("exiled", e.Exiled).Bool("tie", e.Tie).Msg("voting complete")
	})
	emitter.On(events, func(e room.ShipEvent) {
		logger.Debug().Msgf("ship: %+v", e.Event)
	})
}

func play(ctx context.Context, lc *lobbyclient.LobbyClient, config *Config, logger *log.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	if err := lc.Connect(connectCtx); err != nil {
		return fmt.Errorf("could not connect: %w", err)
	}

	var code protocol.Code
	if config.LobbyGameCode == "" {
		var err error
		code, err = lc.HostGame(connectCtx, protocol.DefaultGameOptions())
		if err != nil {
			return fmt.Errorf("could not host game: %w", err)
		}
		logger.Info().Msgf("hosting %s", code)
	} else {
		var err error
		code, err = protocol.CodeFromString(config.LobbyGameCode)
		if err != nil {
			return fmt.Errorf("invalid game code: %w", err)
		}
	}

	clientID, err := lc.JoinGame(connectCtx, code)
	if err != nil {
		return fmt.Errorf("could not join %s: %w", code, err)
	}
	logger.Info().Int32("client_id", clientID).Msgf("joined %s", code)

	if err := lc.Do(ctx, func(r *room.Room) { watch(r, logger) }); err != nil {
		return err
	}

	if err := lc.EnterGame(connectCtx); err != nil {
		return fmt.Errorf("could not enter game: %w", err)
	}

	return lc.Do(ctx, func(r *room.Room) {
		if p := r.Player(clientID); p != nil && p.Control() != nil {
			p.Control().CheckName(config.LobbyUsername)
		}
	})
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger(config.LogLevel)

	lobbyClient, err := lobbyclient.NewLobbyClient(lobbyclient.Config{
		Network:  "udp4",
		Address:  config.LobbyServerAddr4,
		Username: config.LobbyUsername,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not construct lobby client: %w", err)
	}

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var lobbyClientRunErr error
	go func() {
		defer wg.Done()
		lobbyClientRunErr = lobbyClient.Run(ctx)
		cancel()
	}()

	if err := play(ctx, lobbyClient, config, logger); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-signalChan:
		logger.Info().Msgf("received %+v signal", sig)
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	if lobbyClientRunErr != nil {
		return fmt.Errorf("lobby client run failed: %w", lobbyClientRunErr)
	}

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
