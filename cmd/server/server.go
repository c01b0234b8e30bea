package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/clients/narrator"
	"github.com/KirkDiggler/rpg-narrator/internal/config"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/combat"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/commerce"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/loot"
	"github.com/KirkDiggler/rpg-narrator/internal/handlers/game/v1alpha1"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/action"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/session"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/idgen"
	redisclient "github.com/KirkDiggler/rpg-narrator/internal/redis"
	characterrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/character"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate"
	sessionrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/session"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
)

var (
	configPath string
	grpcPort   int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gRPC server",
	Long:  `Start the RPG Narrator gRPC server backed by Redis and an OpenAI-compatible narrator.`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	serverCmd.Flags().IntVar(&grpcPort, "port", 0, "gRPC server port (overrides config)")
}

func newLogger(cfg config.ServerConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if grpcPort != 0 {
		cfg.Server.Port = grpcPort
	}

	logger, err := newLogger(cfg.Server)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handler, err := buildHandler(ctx, cfg)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	logFn := grpc_logging.LoggerFunc(func(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
		logger.Log(ctx, slog.Level(level), msg, fields...)
	})
	recoverFn := grpc_recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
		logger.ErrorContext(ctx, "recovered from panic", "panic", p)
		return status.Error(codes.Internal, "internal error")
	})

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(logFn),
			grpc_recovery.UnaryServerInterceptor(recoverFn),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(logFn),
			grpc_recovery.StreamServerInterceptor(recoverFn),
		),
	)

	v1alpha1.RegisterGameServiceServer(srv, handler)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(v1alpha1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(srv)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("gRPC server starting", "port", cfg.Server.Port)
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("failed to serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gRPC server")
		healthServer.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("graceful shutdown timeout exceeded, forcing stop")
			srv.Stop()
		case <-stopped:
			logger.Info("server stopped gracefully")
		}

		return nil
	case err := <-errChan:
		return err
	}
}

// buildHandler wires storage, engines and orchestrators into the game handler
func buildHandler(ctx context.Context, cfg *config.Config) (*v1alpha1.Handler, error) {
	redisClient, err := redisclient.NewClient(cfg.Redis.Endpoint, &redisclient.Options{
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		UseTLS:       cfg.Redis.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	if err := redisclient.Ping(ctx, redisClient, 5*time.Second); err != nil {
		return nil, fmt.Errorf("redis is unreachable at %s: %w", cfg.Redis.Endpoint, err)
	}

	clk := clock.New()

	items := catalog.Default()
	if cfg.Game.HydrateCatalog {
		source, err := catalog.NewSRDSource(&catalog.SRDConfig{
			BaseURL:  cfg.Game.SRDBaseURL,
			CacheTTL: cfg.Game.SRDCacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SRD source: %w", err)
		}
		added, err := items.Hydrate(ctx, source, cfg.Game.SRDEquipment)
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate catalog: %w", err)
		}
		slog.Info("catalog hydrated from SRD", "added", added, "total", items.Len())
	}

	diceEngine := dice.NewEngine(dice.DefaultRoller)

	bus := events.NewBus()
	combat.SubscribeAudit(bus)

	machine, err := combat.NewMachine(&combat.Config{
		Dice:     diceEngine,
		Catalog:  items,
		Bestiary: catalog.DefaultBestiary(),
		Loot:     loot.NewEngine(dice.DefaultRoller, loot.DefaultTables...),
		EventBus: bus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create combat machine: %w", err)
	}

	characters, err := characterrepo.NewRedis(&characterrepo.RedisConfig{Client: redisClient, Clock: clk})
	if err != nil {
		return nil, fmt.Errorf("failed to create character repository: %w", err)
	}
	sessions, err := sessionrepo.NewRedis(&sessionrepo.RedisConfig{Client: redisClient, Clock: clk})
	if err != nil {
		return nil, fmt.Errorf("failed to create session repository: %w", err)
	}
	state, err := gamestate.NewRedis(&gamestate.RedisConfig{Client: redisClient, Clock: clk})
	if err != nil {
		return nil, fmt.Errorf("failed to create game state repository: %w", err)
	}

	tracker, err := budget.NewRedis(&budget.Config{
		Client:             redisClient,
		Clock:              clk,
		SessionDailyTokens: cfg.Budget.SessionDailyTokens,
		GlobalDailyTokens:  cfg.Budget.GlobalDailyTokens,
		EstimatePerCall:    cfg.Budget.EstimatePerCall,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create budget tracker: %w", err)
	}

	narratorClient, err := narrator.NewOpenAI(&narrator.Config{
		BaseURL:           cfg.Narrator.BaseURL,
		APIKey:            cfg.Narrator.APIKey,
		Model:             cfg.Narrator.Model,
		MaxTokens:         cfg.Narrator.MaxTokens,
		Temperature:       cfg.Narrator.Temperature,
		Timeout:           cfg.Narrator.Timeout,
		RequestsPerSecond: cfg.Narrator.RequestsPerSecond,
		Burst:             cfg.Narrator.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create narrator client: %w", err)
	}

	sessionService, err := session.NewOrchestrator(&session.Config{
		CharacterRepo:      characters,
		SessionRepo:        sessions,
		GameState:          state,
		Budget:             tracker,
		Catalog:            items,
		CharacterIDs:       idgen.NewUUID("char"),
		SessionIDs:         idgen.NewUUID("sess"),
		Clock:              clk,
		MaxSessionsPerUser: cfg.Game.MaxSessionsPerUser,
		StartingGold:       cfg.Game.StartingGold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session orchestrator: %w", err)
	}

	actionService, err := action.NewOrchestrator(&action.Config{
		GameState:        state,
		Budget:           tracker,
		Narrator:         narratorClient,
		Combat:           machine,
		Commerce:         commerce.NewEngine(items),
		Catalog:          items,
		Dice:             diceEngine,
		Clock:            clk,
		HistoryWindow:    cfg.Game.HistoryWindow,
		CombatLogEntries: cfg.Game.CombatLogEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create action orchestrator: %w", err)
	}

	return v1alpha1.NewHandler(&v1alpha1.HandlerConfig{
		SessionService: sessionService,
		ActionService:  actionService,
	})
}
