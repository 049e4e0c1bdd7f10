package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"exit-readiness-service/internal/app"
	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/infra/memory"
	inframongo "exit-readiness-service/internal/infra/mongo"
	pgstore "exit-readiness-service/internal/infra/postgres"
	pgmigrations "exit-readiness-service/internal/infra/postgres/migrations"
	infraredis "exit-readiness-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestScoreWithSeededQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, memory.ExitReadinessQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute, nil)
	service := app.NewScorecardService(quizRepo, memory.ExitReadinessQuizID)

	quiz, err := service.Quiz(ctx, "")
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if len(quiz.Questions) != 10 || len(quiz.Domains) != 5 {
		t.Fatalf("unexpected quiz shape: %d questions, %d domains", len(quiz.Questions), len(quiz.Domains))
	}

	answers := domain.NewAnswerSet(quiz)
	for id := range answers {
		answers[id] = 3
	}
	summary, err := service.Score(ctx, "", answers)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if summary.Overall != 60 || !summary.Analysis.AllEqual {
		t.Fatalf("expected 60 with all domains equal, got %d %+v", summary.Overall, summary.Analysis)
	}

	if exists, err := redisClient.Exists(ctx, "quiz:"+memory.ExitReadinessQuizID).Result(); err != nil || exists != 1 {
		t.Fatalf("expected quiz cached in redis, exists=%d err=%v", exists, err)
	}
}

func TestReportStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	mongoURI, mongoCleanup := startMongo(t, ctx)
	defer mongoCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	mongoClient, err := inframongo.Connect(ctx, mongoURI)
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer mongoClient.Disconnect(ctx)

	stores := map[string]interface {
		app.BlobStore
		app.Pinger
	}{
		"postgres": pgstore.NewBlobStore(pool),
		"redis":    infraredis.NewBlobStore(redisClient, time.Hour),
		"mongo":    inframongo.NewBlobStore(mongoClient.Database("exit_readiness_test")),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			if err := store.Ping(ctx); err != nil {
				t.Fatalf("ping: %v", err)
			}
			data := []byte("%PDF-1.4 exit readiness")
			if err := store.Put(ctx, "exit-readiness-0123456789abcdef.pdf", data, "application/pdf"); err != nil {
				t.Fatalf("put: %v", err)
			}
			blob, err := store.Get(ctx, "exit-readiness-0123456789abcdef.pdf")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(blob.Data) != string(data) || blob.ContentType != "application/pdf" {
				t.Fatalf("unexpected blob %q %q", blob.Data, blob.ContentType)
			}
			if _, err := store.Get(ctx, "missing.pdf"); !errors.Is(err, domain.ErrReportNotFound) {
				t.Fatalf("expected ErrReportNotFound, got %v", err)
			}
		})
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "scorecard", "POSTGRES_PASSWORD": "scorecardpass", "POSTGRES_DB": "scorecard"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://scorecard:scorecardpass@%s:%s/scorecard?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func startMongo(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start mongo: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("mongo host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("mongo port: %v", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
