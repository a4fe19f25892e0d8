package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"stakehub/database"
)

const (
	postgresImage    = "postgres:16-alpine"
	templateDatabase = "stakehub_template"
	testUser         = "test_user"
	testPassword     = "test_password"
)

// TestDatabase is one migrated database owned by a single test
type TestDatabase struct {
	DB   *database.DB
	Name string
	URL  string
}

// server is the Postgres container shared by every test in the package.
// It holds a migrated template database that each test clones.
type server struct {
	container *postgres.PostgresContainer
	baseURL   string
	adminURL  string
}

var (
	sharedServer    *server
	sharedServerErr error
	serverOnce      sync.Once
	// CREATE DATABASE ... TEMPLATE fails while another clone reads the template
	cloneMu     sync.Mutex
	databaseSeq atomic.Int64
)

// SetupTestDatabase returns a fresh database with every migration applied.
// The container starts once per test binary and is reaped by testcontainers
// when the process exits; each test gets its own database cloned from a
// migrated template, so parallel tests never see each other's rows.
// Skipped under -short.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	serverOnce.Do(func() {
		sharedServer, sharedServerErr = startServer(context.Background())
	})
	require.NoError(t, sharedServerErr, "failed to start postgres container")

	name := fmt.Sprintf("stakehub_t%d", databaseSeq.Add(1))
	require.NoError(t, sharedServer.cloneTemplate(name))

	url := database.ConstructDatabaseURL(sharedServer.baseURL, name)
	db, err := database.NewConnection(context.Background(), url)
	require.NoError(t, err)

	testDB := &TestDatabase{DB: db, Name: name, URL: url}
	t.Cleanup(func() {
		db.Close()
		if err := sharedServer.dropDatabase(name); err != nil {
			t.Logf("Warning: failed to drop test database %s: %v", name, err)
		}
	})
	return testDB
}

func startServer(ctx context.Context) (*server, error) {
	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(templateDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"test":    "stakehub-repository",
			"cleanup": "auto",
		}),
	)
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to read mapped port: %w", err)
	}

	s := &server{
		container: container,
		baseURL:   fmt.Sprintf("postgres://%s:%s@%s:%s", testUser, testPassword, host, port.Port()),
	}
	s.adminURL = database.ConstructDatabaseURL(s.baseURL, "postgres")

	if err := database.RunMigrationsWithURL(database.ConstructDatabaseURL(s.baseURL, templateDatabase)); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to migrate template database: %w", err)
	}
	return s, nil
}

func (s *server) cloneTemplate(name string) error {
	cloneMu.Lock()
	defer cloneMu.Unlock()

	stmt := fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", pgx.Identifier{name}.Sanitize(), pgx.Identifier{templateDatabase}.Sanitize())

	// The migration connection may still be closing on the server side
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		if err = s.exec(stmt); err == nil || !strings.Contains(err.Error(), "being accessed by other users") {
			return err
		}
		time.Sleep(200 * time.Millisecond)
	}
	return err
}

func (s *server) dropDatabase(name string) error {
	return s.exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", pgx.Identifier{name}.Sanitize()))
}

func (s *server) exec(stmt string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, s.adminURL)
	if err != nil {
		return fmt.Errorf("failed to connect to admin database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute %q: %w", stmt, err)
	}
	return nil
}
