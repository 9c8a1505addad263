// Package main prepares a PostgreSQL server for Promptea: it creates the
// application database when missing and enables the pgvector extension.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/infrastructure/logging"
)

// params locate the server and the application database
type params struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func paramsFromEnv() params {
	return params{
		Host:     getEnvWithDefault("DB_HOST", "localhost"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "promptea"),
		SSLMode:  getEnvWithDefault("DB_SSL_MODE", "disable"),
	}
}

// connString renders a keyword/value connection string; an empty dbname
// connects to the server's default database
func (p params) connString(dbname string) string {
	s := fmt.Sprintf("host=%s port=%s user=%s sslmode=%s", p.Host, p.Port, p.User, p.SSLMode)
	if p.Password != "" {
		s += " password=" + quoteValue(p.Password)
	}
	if dbname != "" {
		s += " dbname=" + quoteValue(dbname)
	}
	return s
}

func main() {
	_ = godotenv.Load()
	logger := logging.Must(getEnvWithDefault("LOG_LEVEL", "info"), getEnvWithDefault("LOG_FORMAT", "console"))
	defer func() { _ = logger.Sync() }()

	p := paramsFromEnv()
	if p.Password == "" {
		logger.Fatal("DB_PASSWORD environment variable is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := setup(ctx, p, logger); err != nil {
		logger.Fatal("setup failed", zap.Error(err))
	}
	logger.Info("database ready", zap.String("database", p.DBName))
	fmt.Printf("VECTOR_DSN=%s\n", p.connString(p.DBName))
}

func setup(ctx context.Context, p params, logger *zap.Logger) error {
	server, err := sql.Open("postgres", p.connString(""))
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer server.Close()
	if err := server.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	created, err := ensureDatabase(ctx, server, p.DBName)
	if err != nil {
		return err
	}
	logger.Info("database checked", zap.String("database", p.DBName), zap.Bool("created", created))

	app, err := sql.Open("postgres", p.connString(p.DBName))
	if err != nil {
		return fmt.Errorf("failed to connect to application database: %w", err)
	}
	defer app.Close()

	if err := enableVector(ctx, app); err != nil {
		return err
	}
	logger.Info("pgvector extension enabled")
	return nil
}

// ensureDatabase creates name unless it exists and reports whether it did
func ensureDatabase(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	const query = "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)"
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check if database exists: %w", err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE takes no parameters
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("failed to create database: %w", err)
	}
	return true, nil
}

func enableVector(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	var ok bool
	const check = "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')"
	if err := db.QueryRowContext(ctx, check).Scan(&ok); err != nil {
		return fmt.Errorf("failed to verify vector extension: %w", err)
	}
	if !ok {
		return fmt.Errorf("pgvector extension is not properly installed")
	}
	return nil
}

// quoteValue single-quotes a connection string value when it holds
// spaces or quotes
func quoteValue(v string) string {
	needs := v == ""
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			needs = true
			break
		}
	}
	if !needs {
		return v
	}
	out := []rune{'\''}
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
