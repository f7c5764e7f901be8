package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WessleyAI/carfeed/engine/domain"
)

// Execer is the part of *pgxpool.Pool the Postgres sink uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink upserts each listing as one row of the listings table.
type PostgresSink struct {
	db    Execer
	clock func() time.Time
}

// NewPostgresSink wraps db.
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db, clock: time.Now}
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS listings (
	id                   TEXT PRIMARY KEY,
	manufacturer         TEXT NOT NULL,
	model                TEXT NOT NULL,
	price                BIGINT NOT NULL,
	year                 INTEGER NOT NULL,
	fuel_type            TEXT NOT NULL,
	mileage              INTEGER NOT NULL,
	url                  TEXT NOT NULL,
	accident_count       INTEGER NOT NULL,
	other_accident_count INTEGER NOT NULL,
	accident_cost        BIGINT NOT NULL,
	other_accident_cost  BIGINT NOT NULL,
	replaced_parts       TEXT[] NOT NULL,
	diagnosis_narrative  TEXT NOT NULL,
	condition            TEXT NOT NULL,
	description          TEXT NOT NULL,
	checker_comment      TEXT NOT NULL,
	outer_panel_comment  TEXT NOT NULL,
	short_answer_msg     TEXT NOT NULL,
	full_answer_msg      TEXT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
)`

const upsertSQL = `INSERT INTO listings (
	id, manufacturer, model, price, year, fuel_type, mileage, url,
	accident_count, other_accident_count, accident_cost, other_accident_cost,
	replaced_parts, diagnosis_narrative, condition, description,
	checker_comment, outer_panel_comment,
	short_answer_msg, full_answer_msg, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (id) DO UPDATE SET
	manufacturer = EXCLUDED.manufacturer,
	model = EXCLUDED.model,
	price = EXCLUDED.price,
	year = EXCLUDED.year,
	fuel_type = EXCLUDED.fuel_type,
	mileage = EXCLUDED.mileage,
	url = EXCLUDED.url,
	accident_count = EXCLUDED.accident_count,
	other_accident_count = EXCLUDED.other_accident_count,
	accident_cost = EXCLUDED.accident_cost,
	other_accident_cost = EXCLUDED.other_accident_cost,
	replaced_parts = EXCLUDED.replaced_parts,
	diagnosis_narrative = EXCLUDED.diagnosis_narrative,
	condition = EXCLUDED.condition,
	description = EXCLUDED.description,
	checker_comment = EXCLUDED.checker_comment,
	outer_panel_comment = EXCLUDED.outer_panel_comment,
	short_answer_msg = EXCLUDED.short_answer_msg,
	full_answer_msg = EXCLUDED.full_answer_msg,
	updated_at = EXCLUDED.updated_at`

// EnsureSchema creates the listings table if needed.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: postgres schema: %w", err)
	}
	return nil
}

func (p *PostgresSink) Name() string { return "postgres" }

// Put upserts l.
func (p *PostgresSink) Put(ctx context.Context, l domain.CanonicalListing) error {
	parts := l.ReplacedParts
	if parts == nil {
		parts = []string{}
	}
	_, err := p.db.Exec(ctx, upsertSQL,
		l.ID, l.Manufacturer, l.Model, l.Price, l.Year, l.FuelType, l.Mileage, l.URL,
		l.AccidentCount, l.OtherAccidentCount, l.AccidentCost, l.OtherAccidentCost,
		parts, l.DiagnosisNarrative, string(l.Condition), l.Description,
		l.CheckerComment, l.OuterPanelComment,
		l.ShortMessage, l.FullMessage, p.clock().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: postgres upsert %s: %w", l.ID, err)
	}
	return nil
}

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}
