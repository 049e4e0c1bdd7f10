package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exit-readiness-service/internal/app"
	"exit-readiness-service/internal/config"
	"exit-readiness-service/internal/infra/activecampaign"
	"exit-readiness-service/internal/infra/memory"
	inframongo "exit-readiness-service/internal/infra/mongo"
	"exit-readiness-service/internal/infra/pdf"
	pgstore "exit-readiness-service/internal/infra/postgres"
	infraredis "exit-readiness-service/internal/infra/redis"
	infras3 "exit-readiness-service/internal/infra/s3"
	"exit-readiness-service/internal/logging"
	transport "exit-readiness-service/internal/transport/http"
	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scorecard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// reportStore is a blob store the health endpoint can probe.
type reportStore interface {
	app.BlobStore
	app.Pinger
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	printBanner()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewBuiltinQuizLoader()
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL, logger.Named("quiz_cache"))
	} else {
		quizRepo = memory.NewLoaderRepository(loader)
	}

	store, closeStore, err := openReportStore(ctx, cfg, redisClient, pool)
	if err != nil {
		return err
	}
	defer closeStore()
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("reports are kept in process memory and lost on restart; set STORAGE_DRIVER or R2_* for durable storage")
	}

	crm := activecampaign.NewClient(cfg.CRM.BaseURL, cfg.CRM.APIToken, cfg.CRM.Retry.Policy(),
		activecampaign.WithLogger(logger.Named("activecampaign")))

	pipeline := app.NewPipeline(quizRepo, pdf.NewRenderer(""), store, crm, app.PipelineConfig{
		ListID:         cfg.CRM.ListID,
		CompletedTag:   cfg.CRM.CompletedTag,
		ScoreTagPrefix: cfg.CRM.ScoreTagPrefix,
		Fields: app.FieldMapping{
			OverallScore: cfg.CRM.Fields.OverallScore,
			ReportURL:    cfg.CRM.Fields.ReportURL,
			Domains:      cfg.CRM.Fields.Domains,
		},
		StoragePolicy: cfg.Storage.Retry.Policy(),
		ReportURL:     cfg.ReportURL,
		DefaultQuizID: cfg.Quiz.DefaultID,
	}, logger.Named("pipeline"))

	handler := transport.NewHandler(transport.Deps{
		Pipeline:      pipeline,
		Scorecards:    app.NewScorecardService(quizRepo, cfg.Quiz.DefaultID),
		Reports:       store,
		CRM:           crm,
		Storage:       store,
		Logger:        logger.Named("http"),
		SubmitTimeout: config.TTLDuration(cfg.Server.SubmitTimeout, 30*time.Second),
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(handler, transport.NewWSHandler(handler)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	go func() {
		logger.Info("starting exit readiness service",
			zap.String("addr", server.Addr),
			zap.String("storage_driver", cfg.Storage.Driver),
			zap.Bool("redis", redisClient != nil),
			zap.Bool("postgres", pool != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openReportStore selects the blob store for the configured driver.
func openReportStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) (reportStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.NewBlobStore(), noop, nil
	case config.DriverRedis:
		if redisClient == nil {
			return nil, noop, fmt.Errorf("storage driver %q requires redis", cfg.Storage.Driver)
		}
		return infraredis.NewBlobStore(redisClient, config.TTLDuration(cfg.Storage.TTL, 0)), noop, nil
	case config.DriverPostgres:
		if pool == nil {
			return nil, noop, fmt.Errorf("storage driver %q requires postgres", cfg.Storage.Driver)
		}
		return pgstore.NewBlobStore(pool), noop, nil
	case config.DriverMongo:
		client, err := inframongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(shutdownCtx)
		}
		return inframongo.NewBlobStore(client.Database(cfg.Mongo.Database)), closeFn, nil
	case config.DriverS3:
		client := infras3.NewClient(infras3.Options{
			Endpoint:        cfg.Storage.S3.ResolvedEndpoint(),
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		})
		return infras3.NewBlobStore(client, cfg.Storage.S3.Bucket), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func printBanner() {
	figure.NewFigure("EXIT READINESS", "", true).Print()
	fmt.Println("======================================================")
}
