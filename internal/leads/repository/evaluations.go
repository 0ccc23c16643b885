package repository

import (
	"context"
	"errors"
	"time"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/valuation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EvaluationRecord is one row of the append-only evaluation history.
type EvaluationRecord struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Tier       domain.EvaluationTier
	Trigger    domain.EvaluationTrigger
	Status     domain.EvaluationStatus
	Snapshots  map[string]domain.Snapshot
	Errors     map[string]string
	Cost       decimal.Decimal
	DurationMs int64
	StartedAt  time.Time
	CreatedAt  time.Time
}

// EvaluationWrite is everything an evaluation changes on a lead. Record is
// nil for manual overrides, which do not produce a history row.
type EvaluationWrite struct {
	ExpectedEvaluationVersion int
	Estimates                 []valuation.Estimate
	MAO                       float64
	SpreadPercent             float64
	HoldScore                 int
	FlipScore                 int
	LeadScore                 float64
	Record                    *EvaluationRecord
}

// WriteEvaluation stores new estimates, derived metrics and the history row
// in one transaction, guarded by evaluation_version. Notes are never touched.
func (r *Repository) WriteEvaluation(ctx context.Context, id uuid.UUID, organizationID uuid.UUID, w EvaluationWrite) (Lead, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			mao = $4,
			spread_percent = $5,
			hold_score = $6,
			flip_score = $7,
			lead_score = $8,
			evaluation_version = evaluation_version + 1,
			version = version + 1,
			last_evaluated_at = now(),
			updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND evaluation_version = $3
		RETURNING `+leadColumns,
		id, organizationID, w.ExpectedEvaluationVersion,
		w.MAO, w.SpreadPercent, w.HoldScore, w.FlipScore, w.LeadScore,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return Lead{}, r.missOrConflict(ctx, id, organizationID)
	}
	if err != nil {
		return Lead{}, err
	}

	for _, e := range w.Estimates {
		if err := insertEstimate(ctx, tx, e); err != nil {
			return Lead{}, err
		}
	}

	if w.Record != nil {
		if err := insertEvaluationRecord(ctx, tx, *w.Record); err != nil {
			return Lead{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func insertEstimate(ctx context.Context, tx pgx.Tx, e valuation.Estimate) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO valuation_estimates (
			id, lead_id, kind, value, source, confidence_level, confidence_pct, note,
			original_value, validation, evaluation_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.LeadID, e.Kind, e.Value, e.Source, e.ConfidenceLevel, e.ConfidencePct, e.Note,
		e.OriginalValue, e.Validation, e.EvaluationID, e.CreatedAt)
	return err
}

func insertEvaluationRecord(ctx context.Context, tx pgx.Tx, rec EvaluationRecord) error {
	snapshots := rec.Snapshots
	if snapshots == nil {
		snapshots = map[string]domain.Snapshot{}
	}
	errs := rec.Errors
	if errs == nil {
		errs = map[string]string{}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO evaluation_history (
			id, lead_id, tier, trigger, status, snapshots, errors, cost, duration_ms, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
	`, rec.ID, rec.LeadID, rec.Tier, rec.Trigger, rec.Status, snapshots, errs,
		rec.Cost.StringFixed(4), rec.DurationMs, rec.StartedAt)
	return err
}

// AppendEvaluationRecord stores a history row for a run that wrote nothing
// else, such as a cancelled or superseded run.
func (r *Repository) AppendEvaluationRecord(ctx context.Context, rec EvaluationRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertEvaluationRecord(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const evaluationColumns = `h.id, h.lead_id, h.tier, h.trigger, h.status, h.snapshots, h.errors, h.cost::text,
	h.duration_ms, h.started_at, h.created_at`

func scanEvaluationRecord(row pgx.Row) (EvaluationRecord, error) {
	var (
		rec  EvaluationRecord
		cost string
	)
	if err := row.Scan(
		&rec.ID, &rec.LeadID, &rec.Tier, &rec.Trigger, &rec.Status, &rec.Snapshots, &rec.Errors, &cost,
		&rec.DurationMs, &rec.StartedAt, &rec.CreatedAt,
	); err != nil {
		return EvaluationRecord{}, err
	}
	parsed, err := decimal.NewFromString(cost)
	if err != nil {
		return EvaluationRecord{}, err
	}
	rec.Cost = parsed
	return rec, nil
}

// ListEvaluationHistory pages a lead's runs, newest first.
func (r *Repository) ListEvaluationHistory(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, limit int, offset int) ([]EvaluationRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM evaluation_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE h.lead_id = $1 AND l.organization_id = $2
	`, leadID, organizationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluation_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE h.lead_id = $1 AND l.organization_id = $2
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT $3 OFFSET $4
	`, leadID, organizationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]EvaluationRecord, 0)
	for rows.Next() {
		rec, err := scanEvaluationRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}

// LatestEvaluation returns the newest run of tier for a lead.
func (r *Repository) LatestEvaluation(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, tier domain.EvaluationTier) (EvaluationRecord, error) {
	rec, err := scanEvaluationRecord(r.pool.QueryRow(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluation_history h
		JOIN leads l ON l.id = h.lead_id
		WHERE h.lead_id = $1 AND l.organization_id = $2 AND h.tier = $3
		ORDER BY h.created_at DESC
		LIMIT 1
	`, leadID, organizationID, tier))
	if errors.Is(err, pgx.ErrNoRows) {
		return EvaluationRecord{}, ErrNotFound
	}
	return rec, err
}

const estimateColumns = `e.id, e.lead_id, e.kind, e.value, e.source, e.confidence_level, e.confidence_pct, e.note,
	e.original_value, e.validation, e.evaluation_id, e.created_at`

// ListEstimates returns a lead's estimate history, newest first. A nil kind
// returns every kind.
func (r *Repository) ListEstimates(ctx context.Context, leadID uuid.UUID, organizationID uuid.UUID, kind *valuation.Kind) ([]valuation.Estimate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+estimateColumns+`
		FROM valuation_estimates e
		JOIN leads l ON l.id = e.lead_id
		WHERE e.lead_id = $1 AND l.organization_id = $2 AND ($3::text IS NULL OR e.kind = $3)
		ORDER BY e.created_at DESC, e.id DESC
	`, leadID, organizationID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]valuation.Estimate, 0)
	for rows.Next() {
		var e valuation.Estimate
		if err := rows.Scan(
			&e.ID, &e.LeadID, &e.Kind, &e.Value, &e.Source, &e.ConfidenceLevel, &e.ConfidencePct, &e.Note,
			&e.OriginalValue, &e.Validation, &e.EvaluationID, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}
