package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/behzodk/shortlink/internal/model"
)

// VisitRepository handles the append-only visits table. Visits are never
// updated or deleted here; retention is an external concern.
type VisitRepository struct {
	db *pgxpool.Pool
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{db: db}
}

// Record appends a visit row.
func (r *VisitRepository) Record(ctx context.Context, visit *model.Visit) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.sql.table", "visits"),
		),
	)
	defer span.End()

	query := `
		INSERT INTO visits (short_link_id, visited_at, ip_address, location, device_type, browser, passcode_success)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRow(
		ctx,
		query,
		visit.ShortLinkID,
		visit.VisitedAt,
		visit.IPAddress,
		visit.Location,
		visit.DeviceType,
		visit.Browser,
		visit.PasscodeSuccess,
	).Scan(&visit.ID)

	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListByLink returns up to limit visits for a link, newest first.
func (r *VisitRepository) ListByLink(ctx context.Context, linkID uuid.UUID, limit int) ([]*model.Visit, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "visits"),
		),
	)
	defer span.End()

	query := `
		SELECT id, short_link_id, visited_at, ip_address, location, device_type, browser, passcode_success
		FROM visits
		WHERE short_link_id = $1
		ORDER BY visited_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, linkID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var visits []*model.Visit
	for rows.Next() {
		var v model.Visit
		if err := rows.Scan(
			&v.ID,
			&v.ShortLinkID,
			&v.VisitedAt,
			&v.IPAddress,
			&v.Location,
			&v.DeviceType,
			&v.Browser,
			&v.PasscodeSuccess,
		); err != nil {
			span.RecordError(err)
			return nil, err
		}
		visits = append(visits, &v)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return visits, nil
}

// LinkStats aggregates visit analytics for one link.
type LinkStats struct {
	TotalVisits      int64
	PasscodeAccepted int64
	PasscodeRejected int64
	Devices          map[string]int64
	Browsers         map[string]int64
	LastVisitAt      *time.Time
}

// StatsByLink computes per-link visit aggregates in the database.
func (r *VisitRepository) StatsByLink(ctx context.Context, linkID uuid.UUID) (*LinkStats, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "visits"),
		),
	)
	defer span.End()

	stats := &LinkStats{
		Devices:  make(map[string]int64),
		Browsers: make(map[string]int64),
	}

	summary := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE passcode_success IS TRUE),
		       COUNT(*) FILTER (WHERE passcode_success IS FALSE),
		       MAX(visited_at)
		FROM visits
		WHERE short_link_id = $1`
	err := r.db.QueryRow(ctx, summary, linkID).Scan(
		&stats.TotalVisits,
		&stats.PasscodeAccepted,
		&stats.PasscodeRejected,
		&stats.LastVisitAt,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	grouped := `
		SELECT device_type, browser, COUNT(*)
		FROM visits
		WHERE short_link_id = $1
		GROUP BY device_type, browser`
	rows, err := r.db.Query(ctx, grouped, linkID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var device, browser string
		var count int64
		if err := rows.Scan(&device, &browser, &count); err != nil {
			span.RecordError(err)
			return nil, err
		}
		stats.Devices[device] += count
		stats.Browsers[browser] += count
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return stats, nil
}
