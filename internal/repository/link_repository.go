package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/behzodk/shortlink/internal/model"
)

var tracer = otel.Tracer("github.com/behzodk/shortlink/internal/repository")

var (
	ErrNotFound     = errors.New("short link not found")
	ErrSlugConflict = errors.New("slug already exists")
)

// LinkRepository handles database operations for short links
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new short-link repository
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new short-link record into the database
func (r *LinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.sql.table", "short_links"),
			attribute.String("slug", link.Slug),
		),
	)
	defer span.End()

	// The unique constraint on slug is the collision check; map the
	// constraint violation to ErrSlugConflict so callers can retry or
	// surface a conflict.
	query := `
		INSERT INTO short_links (id, slug, destination_url, visibility, require_passcode, passcode, owner_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRow(
		ctx,
		query,
		link.ID,
		link.Slug,
		link.DestinationURL,
		link.Visibility,
		link.RequirePasscode,
		link.Passcode,
		link.OwnerID,
		link.ExpiresAt,
	).Scan(&link.CreatedAt)

	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlugConflict
		}
		return err
	}

	return nil
}

// GetBySlug retrieves a short link by its slug. The lookup is
// case-sensitive: slugs are stored lowercase and matched exactly.
func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "short_links"),
			attribute.String("slug", slug),
		),
	)
	defer span.End()

	query := `
		SELECT id, slug, destination_url, visibility, require_passcode, passcode, owner_id, created_at, expires_at
		FROM short_links
		WHERE slug = $1`
	var link model.ShortLink
	err := r.db.QueryRow(ctx, query, slug).Scan(
		&link.ID,
		&link.Slug,
		&link.DestinationURL,
		&link.Visibility,
		&link.RequirePasscode,
		&link.Passcode,
		&link.OwnerID,
		&link.CreatedAt,
		&link.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &link, nil
}

// List returns all short links, newest first.
func (r *LinkRepository) List(ctx context.Context) ([]*model.ShortLink, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "short_links"),
		),
	)
	defer span.End()

	query := `
		SELECT id, slug, destination_url, visibility, require_passcode, passcode, owner_id, created_at, expires_at
		FROM short_links
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var links []*model.ShortLink
	for rows.Next() {
		var link model.ShortLink
		if err := rows.Scan(
			&link.ID,
			&link.Slug,
			&link.DestinationURL,
			&link.Visibility,
			&link.RequirePasscode,
			&link.Passcode,
			&link.OwnerID,
			&link.CreatedAt,
			&link.ExpiresAt,
		); err != nil {
			span.RecordError(err)
			return nil, err
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return links, nil
}

// Delete removes a short link by its slug. Visits cascade in the schema.
func (r *LinkRepository) Delete(ctx context.Context, slug string) error {
	ctx, span := tracer.Start(ctx, "db.delete",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "DELETE"),
			attribute.String("db.sql.table", "short_links"),
			attribute.String("slug", slug),
		),
	)
	defer span.End()

	query := `DELETE FROM short_links WHERE slug = $1`
	result, err := r.db.Exec(ctx, query, slug)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
