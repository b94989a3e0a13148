package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/kmlikithkumar/skillswap/backend/config"
	"github.com/kmlikithkumar/skillswap/backend/registry"
	"github.com/kmlikithkumar/skillswap/backend/relay"
	httpServer "github.com/kmlikithkumar/skillswap/backend/server/http"
	websocketServer "github.com/kmlikithkumar/skillswap/backend/server/websocket"
	"github.com/kmlikithkumar/skillswap/backend/service"
	"github.com/kmlikithkumar/skillswap/backend/storage/badgerstore"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)
	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", cfg.APIListenAddr, "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", cfg.WSListenAddr, "websocket realtime listen address")
		logLevel      = fs.StringP("log-level", "l", cfg.LogLevel, "log level")
		dataDir       = fs.StringP("data-dir", "d", cfg.DataDir, "record store directory")
	)
	if err = fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	db, err := badger.Open(badger.DefaultOptions(*dataDir).WithLogger(nil))
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *dataDir).Msg("failed to open record store")
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close record store")
		}
	}()

	rooms := registry.New(&logger)
	svc := service.NewService(service.Config{
		Rooms:  rooms,
		Relay:  relay.New(rooms, &logger),
		Store:  badgerstore.New(db, &logger),
		Logger: &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:     &logger,
		API:        svc,
		ListenAddr: *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:           &logger,
		MessagingService: svc,
		ListenAddr:       *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
