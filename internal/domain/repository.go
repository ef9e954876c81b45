package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Submission operations
	SaveSubmission(ctx context.Context, sub *Submission) error
	GetSubmission(ctx context.Context, subID string) (*Submission, error)
	ListRecentSubmissions(ctx context.Context, limit int) ([]*Submission, error)

	// Policy document operations
	SavePolicyDocument(ctx context.Context, doc *PolicyDocument) error
	GetLatestPolicyDocument(ctx context.Context) (*PolicyDocument, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
