package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mmo-game/internal/api"
	"github.com/annel0/mmo-game/internal/cache"
	"github.com/annel0/mmo-game/internal/chat"
	"github.com/annel0/mmo-game/internal/config"
	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/network"
	"github.com/annel0/mmo-game/internal/observability"
	"github.com/annel0/mmo-game/internal/persistence"
	"github.com/annel0/mmo-game/internal/server"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/container"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (falls back to $GAME_CONFIG)")
	listenAddr := flag.String("listen", ":7778", "UDP address the KCP reactor listens on")
	requireToken := flag.Bool("require-token", false, "reject AuthRequests with no connection token")
	flag.Parse()

	log, err := logging.NewLogger("server")
	if err != nil {
		panic(err)
	}
	defer log.Close()
	log.Info("starting server")

	if err := logging.InitLogger(); err != nil {
		log.Warn("global logger init failed, package-level log calls will be silent: %v", err)
	}
	defer logging.CloseLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading config: %v", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	world := cfg.World

	shutdownTel, err := observability.InitTelemetry(context.Background(), "mmo_server")
	if err != nil {
		log.Warn("telemetry init failed: %v", err)
	}

	bus, err := startEventBus(cfg, log)
	if err != nil {
		log.Warn("eventbus init failed, continuing without it: %v", err)
	}

	chatSvc, err := chat.NewService(cfg.Chat.GetRedisAddr(), cfg.Chat.HistorySize)
	if err != nil {
		log.Warn("chat service init failed, chat will relay locally only: %v", err)
		chatSvc = nil
	} else if bus != nil {
		chatSvc.UseEventBus(bus)
	}

	lib := block.NewDefaultLibrary()
	gridSize := vec.Vec3{X: world.GetChunkGridSize(), Y: world.GetChunkGridSize(), Z: world.GetChunkGridSize()}
	planet := container.NewPlanet(lib, 1.0, gridSize, world.GetCornerRadius(), world.GetPlanetGravity())

	chunkStore := persistence.NewChunkStore(world.GetDataDir())
	metaStore, err := persistence.NewMetadataStore(world.GetDataDir())
	if err != nil {
		log.Error("opening metadata store: %v", err)
		os.Exit(1)
	}
	defer metaStore.Close()

	// The physics.World argument is left nil: this repository does not
	// implement a physics engine, only the interfaces spec.md §6 says
	// the real one plugs into.
	srv := server.New(&world, lib, planet, nil, chunkStore, metaStore)

	var invalidator cache.CacheInvalidator
	if natsURL := cfg.EventBus.URL; natsURL != "" {
		if inv, err := cache.NewNATSInvalidator(&cache.InvalidatorConfig{NATSURL: natsURL}, *listenAddr); err != nil {
			log.Warn("cache invalidator init failed, running without cross-node invalidation: %v", err)
		} else {
			invalidator = inv
			defer inv.Close()
		}
	}

	if playerCache, err := cache.NewRedisCache(
		&cache.CacheConfig{RedisURL: cfg.Chat.GetRedisAddr()},
		persistence.NewPlayerColdStorage(metaStore),
		invalidator,
	); err != nil {
		log.Warn("player cache init failed, joins will always hit the metadata store: %v", err)
	} else {
		srv.UseCache(playerCache)
		defer playerCache.Close()
	}

	reactor := network.NewReactor(srv, *requireToken)
	if chatSvc != nil {
		reactor.UseChat(chatSvc)
		defer chatSvc.Close()
	}
	if err := reactor.Listen(*listenAddr); err != nil {
		log.Error("listen: %v", err)
		os.Exit(1)
	}
	log.Info("reactor listening on %s", *listenAddr)

	healthSrv := api.NewHealthServer(fmt.Sprintf(":%d", cfg.Server.GetRESTPort()), reactor.SessionCount)
	healthSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		cancel()
	}()

	go func() {
		if err := reactor.Run(ctx); err != nil {
			log.Error("reactor run: %v", err)
		}
	}()

	srv.Run(ctx) // blocks until ctx is cancelled

	if bus != nil {
		bus.Close()
	}
	if shutdownTel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTel(shutdownCtx)
	}
	log.Info("server stopped")
}

// startEventBus wires the NATS JetStream bus used by internal/chat's
// cross-reactor broadcast and by the event bus's own logging listener. A
// failure here is not fatal: the server still runs a single reactor
// without cross-process fanout.
func startEventBus(cfg *config.Config, log *logging.Logger) (*eventbus.JetStreamBus, error) {
	natsURL := "nats://127.0.0.1:4222"
	streamName := "EVENTS"
	retentionHours := 24
	if cfg.EventBus.URL != "" {
		natsURL = cfg.EventBus.URL
	}
	if cfg.EventBus.Stream != "" {
		streamName = cfg.EventBus.Stream
	}
	if cfg.EventBus.Retention > 0 {
		retentionHours = cfg.EventBus.Retention
	}

	bus, err := eventbus.NewJetStreamBus(natsURL, streamName, time.Duration(retentionHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	eventbus.Init(bus)
	if err := eventbus.StartLoggingListener(bus); err != nil {
		log.Warn("starting eventbus logging listener: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	return bus, nil
}
