package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	repoMongo "github.com/dom/account-backend/internal/repository/mongo"
	repoPostgres "github.com/dom/account-backend/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcMongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_accounts"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB.DB = db
	testDB.DSN = dsn
	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears the accounts table for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	if err := tdb.DB.Exec("TRUNCATE TABLE accounts CASCADE").Error; err != nil {
		t.Fatalf("failed to truncate accounts: %v", err)
	}
}

// TestMongo manages a testcontainers MongoDB instance
type TestMongo struct {
	Container *tcMongo.MongoDBContainer
	Client    *mongo.Client
	URI       string
}

func NewTestMongo(t *testing.T) *TestMongo {
	t.Helper()

	ctx := context.Background()

	container, err := tcMongo.Run(ctx, "mongo:6")
	if err != nil {
		t.Fatalf("failed to start mongodb container: %v", err)
	}

	testMongo := &TestMongo{Container: container}
	t.Cleanup(func() {
		testMongo.Cleanup()
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	client, err := repoMongo.NewConnection(ctx, uri)
	if err != nil {
		t.Fatalf("failed to connect to mongodb: %v", err)
	}

	testMongo.Client = client
	testMongo.URI = uri
	return testMongo
}

// Reset hands out a fresh, empty database that is dropped when t ends.
func (tm *TestMongo) Reset(t *testing.T) *mongo.Database {
	t.Helper()

	name := fmt.Sprintf("test_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	db := tm.Client.Database(name)
	t.Cleanup(func() {
		db.Drop(context.Background())
	})
	return db
}

// Cleanup disconnects and terminates the container
func (tm *TestMongo) Cleanup() {
	ctx := context.Background()
	if tm.Client != nil {
		tm.Client.Disconnect(ctx)
	}
	if tm.Container != nil {
		tm.Container.Terminate(ctx)
	}
}
