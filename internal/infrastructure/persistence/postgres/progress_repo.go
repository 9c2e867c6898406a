package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements simulation.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// choiceRecordRow is the JSONB shape of one recorded choice.
type choiceRecordRow struct {
	Step        int       `json:"step"`
	ChoiceID    string    `json:"choice_id"`
	PointsDelta int       `json:"points_delta"`
	Timestamp   time.Time `json:"timestamp"`
}

// Load returns the saved progress of one walk, or (nil, nil) when the user
// never started this simulation.
func (r *ProgressRepository) Load(ctx context.Context, userID string, simulationID simulation.SimulationID) (*simulation.SimulationProgress, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT user_id, simulation_id, current_step, total_score, status,
		       choice_records, started_at, completed_at, updated_at, version
		FROM simulation_progress
		WHERE user_id = $1 AND simulation_id = $2
	`

	row := r.conn.QueryRow(ctx, query, userID, string(simulationID))

	var (
		p           simulation.SimulationProgress
		simID       string
		status      string
		recordsJSON []byte
		completedAt *time.Time
	)
	err := row.Scan(
		&p.UserID,
		&simID,
		&p.CurrentStep,
		&p.TotalScore,
		&status,
		&recordsJSON,
		&p.StartedAt,
		&completedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, r.storeError("Load", err)
	}

	p.SimulationID = simulation.SimulationID(simID)
	p.Status = simulation.Status(status)
	p.CompletedAt = completedAt

	var rows []choiceRecordRow
	if err := json.Unmarshal(recordsJSON, &rows); err != nil {
		return nil, shared.WrapError("simulation", "Load", shared.ErrPersistence,
			"stored choice records are corrupt", err)
	}
	p.Records = make([]simulation.ChoiceRecord, 0, len(rows))
	for _, rec := range rows {
		p.Records = append(p.Records, simulation.ChoiceRecord{
			Step:        simulation.StepNumber(rec.Step),
			ChoiceID:    rec.ChoiceID,
			PointsDelta: rec.PointsDelta,
			Timestamp:   rec.Timestamp,
		})
	}

	if err := p.CheckInvariants(); err != nil {
		return nil, shared.WrapError("simulation", "Load", shared.ErrPersistence,
			"stored progress violates invariants", err)
	}

	return &p, nil
}

// Save upserts the progress row with a version check. A fresh walk
// (version 0) inserts; anything else updates only if the stored version
// still matches, otherwise ConcurrencyConflict. On success the version
// on p is advanced to the stored one.
func (r *ProgressRepository) Save(ctx context.Context, p *simulation.SimulationProgress) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	rows := make([]choiceRecordRow, 0, len(p.Records))
	for _, rec := range p.Records {
		rows = append(rows, choiceRecordRow{
			Step:        int(rec.Step),
			ChoiceID:    rec.ChoiceID,
			PointsDelta: rec.PointsDelta,
			Timestamp:   rec.Timestamp,
		})
	}
	recordsJSON, err := json.Marshal(rows)
	if err != nil {
		return shared.WrapError("simulation", "Save", shared.ErrPersistence,
			"cannot encode choice records", err)
	}

	if p.Version == 0 {
		query := `
			INSERT INTO simulation_progress (
				user_id, simulation_id, current_step, total_score, status,
				choice_records, started_at, completed_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
			ON CONFLICT (user_id, simulation_id) DO NOTHING
		`
		tag, err := r.conn.Exec(ctx, query,
			p.UserID,
			string(p.SimulationID),
			int(p.CurrentStep),
			p.TotalScore,
			string(p.Status),
			recordsJSON,
			p.StartedAt,
			p.CompletedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return r.storeError("Save", err)
		}
		if tag.RowsAffected() == 0 {
			return r.conflict()
		}
		p.Version = 1
		return nil
	}

	query := `
		UPDATE simulation_progress SET
			current_step = $1,
			total_score = $2,
			status = $3,
			choice_records = $4,
			started_at = $5,
			completed_at = $6,
			updated_at = $7,
			version = version + 1
		WHERE user_id = $8 AND simulation_id = $9 AND version = $10
	`
	tag, err := r.conn.Exec(ctx, query,
		int(p.CurrentStep),
		p.TotalScore,
		string(p.Status),
		recordsJSON,
		p.StartedAt,
		p.CompletedAt,
		p.UpdatedAt,
		p.UserID,
		string(p.SimulationID),
		p.Version,
	)
	if err != nil {
		return r.storeError("Save", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflict()
	}

	p.Version++
	return nil
}

func (r *ProgressRepository) conflict() error {
	return shared.NewDomainError(
		"simulation", "Save",
		shared.ErrConcurrencyConflict,
		"progress row changed since it was read",
	)
}

func (r *ProgressRepository) storeError(op string, err error) error {
	msg := "progress store query failed"
	if isTimeout(err) {
		msg = "progress store query timed out"
	}
	return shared.WrapError("simulation", op, shared.ErrPersistence, msg, err)
}
