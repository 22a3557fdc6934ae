// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

const (
	// DefaultPostgresImage ships pg_dump and psql alongside the server.
	DefaultPostgresImage = "postgres:16-alpine"

	// DefaultPostgresPort is the container-side PostgreSQL port.
	DefaultPostgresPort = "5432"

	defaultPostgresUser     = "tenantvault"
	defaultPostgresPassword = "tenantvault"
	defaultPostgresDB       = "tenants"
)

// PostgresContainer is a running PostgreSQL server for tests.
type PostgresContainer struct {
	testcontainers.Container
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// PostgresOption configures the PostgreSQL container.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	image        string
	startTimeout time.Duration
}

// WithPostgresImage sets a custom PostgreSQL image.
func WithPostgresImage(image string) PostgresOption {
	return func(c *postgresConfig) {
		c.image = image
	}
}

// WithStartTimeout sets how long to wait for the server to accept connections.
func WithStartTimeout(timeout time.Duration) PostgresOption {
	return func(c *postgresConfig) {
		c.startTimeout = timeout
	}
}

// NewPostgresContainer creates and starts a PostgreSQL container.
func NewPostgresContainer(ctx context.Context, opts ...PostgresOption) (*PostgresContainer, error) {
	cfg := &postgresConfig{
		image:        DefaultPostgresImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultPostgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     defaultPostgresUser,
			"POSTGRES_PASSWORD": defaultPostgresPassword,
			"POSTGRES_DB":       defaultPostgresDB,
		},
		// The entrypoint restarts the server once after init; wait for the second banner.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(DefaultPostgresPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultPostgresPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		Host:      host,
		Port:      port.Int(),
		User:      defaultPostgresUser,
		Password:  defaultPostgresPassword,
		Database:  defaultPostgresDB,
	}, nil
}

// DatabaseConfig returns connection settings for the container as seen from the host.
func (c *PostgresContainer) DatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:       c.Host,
		Port:       c.Port,
		User:       c.User,
		Password:   c.Password,
		Name:       c.Database,
		SSLMode:    "disable",
		PgDumpPath: "pg_dump",
		PsqlPath:   "psql",
	}
}

// Runner runs pg_dump and psql inside the container, so tests do not
// depend on client binaries installed on the host.
func (c *PostgresContainer) Runner() pgdriver.Runner {
	return &containerRunner{container: c}
}

type containerRunner struct {
	container *PostgresContainer
}

// Run rewrites connection flags to the container-local server and executes the command there.
func (r *containerRunner) Run(ctx context.Context, cmd pgdriver.Command) ([]byte, error) {
	args := make([]string, 0, len(cmd.Args)+1)
	args = append(args, cmd.Path)
	for i := 0; i < len(cmd.Args); i++ {
		a := cmd.Args[i]
		switch a {
		case "--host":
			args = append(args, a, "localhost")
			i++
			continue
		case "--port":
			args = append(args, a, DefaultPostgresPort)
			i++
			continue
		case "--file":
			if i+1 < len(cmd.Args) {
				remote := "/tmp/" + path.Base(cmd.Args[i+1])
				if err := r.container.CopyFileToContainer(ctx, cmd.Args[i+1], remote, 0o644); err != nil {
					return nil, fmt.Errorf("copy script into container: %w", err)
				}
				args = append(args, a, remote)
				i++
				continue
			}
		}
		args = append(args, a)
	}

	env := append([]string{"env"}, cmd.Env...)
	full := append(env, args...)

	code, reader, err := r.container.Exec(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", cmd.Path, err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s output: %w", cmd.Path, err)
	}
	out = stripStreamHeaders(out)
	if code != 0 {
		return nil, faults.Driver(path.Base(cmd.Path), strings.TrimSpace(string(out)), fmt.Errorf("exit code %d", code))
	}
	return out, nil
}

// stripStreamHeaders removes Docker's multiplexed stream framing.
// Each frame is an 8 byte header whose last four bytes hold the payload size.
func stripStreamHeaders(b []byte) []byte {
	var out []byte
	for len(b) >= 8 && (b[0] == 1 || b[0] == 2) && b[1] == 0 && b[2] == 0 && b[3] == 0 {
		size := int(b[4])<<24 | int(b[5])<<16 | int(b[6])<<8 | int(b[7])
		if len(b) < 8+size {
			break
		}
		if b[0] == 1 {
			out = append(out, b[8:8+size]...)
		}
		b = b[8+size:]
	}
	if len(b) > 0 {
		out = append(out, b...)
	}
	return out
}
