package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/common/http/middleware"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	judgerunner "codearena/internal/judge/runner"
	judgeservice "codearena/internal/judge/service"
	"codearena/internal/live"
	matchcontroller "codearena/internal/match/controller"
	"codearena/internal/match/registry"
	matchservice "codearena/internal/match/service"
	submissioncontroller "codearena/internal/submission/controller"
	submissionrepo "codearena/internal/submission/repository"
	taskcontroller "codearena/internal/task/controller"
	taskrepo "codearena/internal/task/repository"
	taskservice "codearena/internal/task/service"
	usercontroller "codearena/internal/user/controller"
	userrepo "codearena/internal/user/repository"
	userservice "codearena/internal/user/service"
	"codearena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error(context.Background(), "service exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Infrastructure.
	database, err := db.NewMySQLWithConfig(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect mysql: %w", err)
	}
	defer database.Close()
	provider := db.NewStaticProvider(database)

	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisCache.Close()

	var producer mq.Producer
	var queue mq.MessageQueue
	if cfg.Kafka != nil && len(cfg.Kafka.Brokers) > 0 {
		queue, err = mq.NewKafkaQueue(*cfg.Kafka)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer queue.Close()
		producer = queue
	}

	var objectStorage storage.ObjectStorage
	var bucket string
	if cfg.Storage != nil && cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinIOStorage(*cfg.Storage)
		if err != nil {
			return fmt.Errorf("connect object storage: %w", err)
		}
		objectStorage = store
		bucket = cfg.Storage.Bucket
	}

	// Repositories.
	tasks := taskrepo.NewTaskRepository(provider, redisCache)
	testCases := taskrepo.NewTestCaseRepository(provider)
	users := userrepo.NewUserRepository(provider)
	submissions := submissionrepo.NewSubmissionRepository(provider)

	// Services.
	var generator taskservice.TaskGenerator
	if cfg.Generator.Endpoint != "" {
		httpGen, err := taskservice.NewHTTPGenerator(cfg.Generator.Endpoint, cfg.Generator.APIKey, cfg.Generator.Timeout)
		if err != nil {
			return fmt.Errorf("init task generator: %w", err)
		}
		generator = taskservice.NewRetryingGenerator(httpGen, cfg.Generator.MaxRetries)
	}
	taskSvc, err := taskservice.NewService(taskservice.Config{
		DB:        provider,
		Tasks:     tasks,
		TestCases: testCases,
		Generator: generator,
	})
	if err != nil {
		return fmt.Errorf("init task service: %w", err)
	}

	var packSvc *taskservice.PackService
	if objectStorage != nil {
		packSvc, err = taskservice.NewPackService(taskSvc, objectStorage, bucket)
		if err != nil {
			return fmt.Errorf("init pack service: %w", err)
		}
	}

	authSvc, err := userservice.NewAuthService(userservice.AuthConfig{
		Users:     users,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
		Issuer:    cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	leaderboard, err := userservice.NewLeaderboardService(redisCache, users)
	if err != nil {
		return fmt.Errorf("init leaderboard service: %w", err)
	}

	judgeSvc, err := judgeservice.NewService(judgeservice.Config{
		Tasks:       taskSvc,
		Submissions: submissions,
		Runner:      judgerunner.NewProcessRunner(),
		Storage:     objectStorage,
		Bucket:      bucket,
		Producer:    producer,
		Cache:       redisCache,
		WorkDir:     cfg.Judge.WorkDir,
	})
	if err != nil {
		return fmt.Errorf("init judge service: %w", err)
	}

	var verdictStats *judgeservice.VerdictStats
	if queue != nil {
		verdictStats = judgeservice.NewVerdictStats(redisCache)
		if err := verdictStats.Register(ctx, queue); err != nil {
			return fmt.Errorf("subscribe verdict stats: %w", err)
		}
		if err := queue.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		defer queue.Stop()
	}

	matches := registry.New(registry.Config{
		IdleTTL:       cfg.Match.IdleTTL,
		SweepInterval: cfg.Match.SweepInterval,
	})
	matches.StartJanitor(ctx)
	defer matches.Stop()

	hub := live.NewHub()
	defer hub.Close()

	coordinator, err := matchservice.NewCoordinator(matchservice.Config{
		DB:          provider,
		Registry:    matches,
		Tasks:       taskSvc,
		Judge:       judgeSvc,
		Users:       users,
		Leaderboard: leaderboard,
		Notifier:    live.NewMatchNotifier(hub),
		Producer:    producer,
		KFactor:     cfg.Match.KFactor,
	})
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	// HTTP surface.
	gin.SetMode(ginMode(cfg.Server.Mode))
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.TraceContextMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	userCtrl := usercontroller.NewUserController(authSvc, leaderboard)
	taskCtrl := taskcontroller.NewTaskController(taskSvc, packSvc)
	matchCtrl := matchcontroller.NewMatchController(coordinator, hub)
	submissionCtrl := submissioncontroller.NewSubmissionController(judgeSvc, submissions, verdictStats)

	api := engine.Group("/api/v1")
	userCtrl.RegisterPublicRoutes(api)
	matchCtrl.RegisterLiveRoutes(api)

	authed := api.Group("", middleware.AuthMiddleware(authSvc))
	userCtrl.RegisterProtectedRoutes(authed)
	matchCtrl.RegisterRoutes(authed)
	submissionCtrl.RegisterRoutes(authed)
	authed.GET("/tasks", taskCtrl.ListTasks)
	authed.GET("/tasks/:id", taskCtrl.GetTask)

	admin := api.Group("", middleware.AuthMiddleware(authSvc, userrepo.RoleAdmin))
	taskCtrl.RegisterAdminRoutes(admin)
	submissionCtrl.RegisterAdminRoutes(admin)

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "arena service listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
