// Package testutil provides shared test infrastructure for integration
// tests that need a Postgres container carrying the run-conditions mirror
// schema.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartPostgres()
//	    defer tc.Terminate()
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// mirrorSchema is the run-conditions mirror schema, the Postgres rendering
// of the snapshot layout.
const mirrorSchema = `
CREATE TABLE schema_versions (version INTEGER NOT NULL);
INSERT INTO schema_versions VALUES (2);

CREATE TABLE runs (number BIGINT PRIMARY KEY);

CREATE TABLE condition_types (
    id         BIGINT PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    value_type TEXT NOT NULL
);

CREATE TABLE conditions (
    run_number        BIGINT NOT NULL REFERENCES runs(number),
    condition_type_id BIGINT NOT NULL REFERENCES condition_types(id),
    int_value         BIGINT,
    float_value       DOUBLE PRECISION,
    text_value        TEXT,
    bool_value        BOOLEAN,
    time_value        TIMESTAMPTZ,
    PRIMARY KEY (run_number, condition_type_id)
);
`

// MustStartPostgres starts a Postgres container and creates the mirror
// schema. Calls os.Exit(1) on failure (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "conddb",
			"POSTGRES_PASSWORD": "conddb",
			"POSTGRES_DB":       "conddb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://conddb:conddb@%s:%s/conddb?sslmode=disable", host, port.Port())

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, mirrorSchema); err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to create mirror schema: %v\n", err)
		os.Exit(1)
	}

	return &TestContainer{Container: container, DSN: dsn}
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := tc.Container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to terminate container: %v\n", err)
	}
}
