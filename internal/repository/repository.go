// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veriscript-health/clarity/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveSubmission stores a classified submission: the lead record of
// record. Requires a populated verdict.
func (r *SQLRepository) SaveSubmission(ctx context.Context, sub *domain.Submission) error {
	if sub == nil || sub.ID == "" {
		return fmt.Errorf("%w: submission ID is required", ErrInvalidInput)
	}
	if sub.Verdict.Status == "" || sub.Verdict.Reason == "" {
		return fmt.Errorf("%w: verdict status and reason are required", ErrInvalidInput)
	}

	profile, _ := json.Marshal(sub.Profile)
	var pricing []byte
	if sub.Verdict.Pricing != nil {
		pricing, _ = json.Marshal(sub.Verdict.Pricing)
	}

	query := `
		INSERT INTO submissions (
			id, email, carrier, state, plan_source, medication,
			bmi, age, status, reason, profile, pricing, trace_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sub.ID, sub.Contact.Email,
		sub.Profile.Carrier, sub.Profile.State, string(sub.Profile.PlanSource), sub.Profile.Medication,
		sub.Profile.BMI, sub.Profile.Age,
		string(sub.Verdict.Status), sub.Verdict.Reason,
		string(profile), nullableString(pricing), sub.TraceID, sub.CreatedAt,
	)
	return err
}

// GetSubmission retrieves a submission by ID.
func (r *SQLRepository) GetSubmission(ctx context.Context, subID string) (*domain.Submission, error) {
	if subID == "" {
		return nil, fmt.Errorf("%w: submission ID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, email, status, reason, profile, pricing, trace_id, created_at
		FROM submissions
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), subID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// ListRecentSubmissions retrieves the most recent submissions, newest
// first.
func (r *SQLRepository) ListRecentSubmissions(ctx context.Context, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, email, status, reason, profile, pricing, trace_id, created_at
		FROM submissions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*domain.Submission, error) {
	var sub domain.Submission
	var profile string
	var pricing, traceID sql.NullString

	err := row.Scan(
		&sub.ID, &sub.Contact.Email,
		&sub.Verdict.Status, &sub.Verdict.Reason,
		&profile, &pricing, &traceID, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(profile), &sub.Profile); err != nil {
		return nil, fmt.Errorf("failed to parse stored profile for %s: %w", sub.ID, err)
	}
	if pricing.Valid && pricing.String != "" {
		var pm domain.PricingModel
		if err := json.Unmarshal([]byte(pricing.String), &pm); err == nil {
			sub.Verdict.Pricing = &pm
		}
	}
	sub.TraceID = traceID.String

	return &sub, nil
}

// SavePolicyDocument stores a raw policy document version.
func (r *SQLRepository) SavePolicyDocument(ctx context.Context, doc *domain.PolicyDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document ID is required", ErrInvalidInput)
	}
	if len(doc.Raw) == 0 {
		return fmt.Errorf("%w: document body is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO policy_documents (id, raw, loaded_at)
		VALUES (?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), doc.ID, doc.Raw, doc.LoadedAt)
	return err
}

// GetLatestPolicyDocument retrieves the most recently stored policy
// document.
func (r *SQLRepository) GetLatestPolicyDocument(ctx context.Context) (*domain.PolicyDocument, error) {
	query := `
		SELECT id, raw, loaded_at
		FROM policy_documents
		ORDER BY loaded_at DESC
		LIMIT 1
	`

	var doc domain.PolicyDocument
	err := r.db.QueryRowContext(ctx, query).Scan(&doc.ID, &doc.Raw, &doc.LoadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
