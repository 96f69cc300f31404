package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/percept-data/pursuit/internal/collector"
)

// Session is one row of the sessions table.
type Session struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	StartedAt     string `json:"started_at"`
	Cancelled     bool   `json:"cancelled"`
	TrialCount    int    `json:"trial_count"`
}

// Store provides the session and trial-record persistence API on top
// of a migrated database.
type Store struct {
	db *DB
}

// NewStore wraps db. The caller is responsible for having applied the
// migrations first.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CreateSession registers a new session and returns its id.
func (s *Store) CreateSession(participantID string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, participant_id) VALUES (?, ?)",
		id, participantID,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// MarkCancelled flags a session as ended by cancellation.
func (s *Store) MarkCancelled(sessionID string) error {
	_, err := s.db.Exec("UPDATE sessions SET cancelled = 1 WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("mark session cancelled: %w", err)
	}
	return nil
}

// Sessions lists all sessions, newest first, with their trial counts.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.participant_id, s.started_at, s.cancelled,
		       (SELECT COUNT(*) FROM trial_records t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ParticipantID, &sess.StartedAt, &sess.Cancelled, &sess.TrialCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// BlockWriter binds a session id to the store so completed blocks can
// be handed straight to it by the engine.
type BlockWriter struct {
	store     *Store
	sessionID string
}

// BlockWriter returns a writer recording into the given session.
func (s *Store) BlockWriter(sessionID string) *BlockWriter {
	return &BlockWriter{store: s, sessionID: sessionID}
}

// SaveBlock inserts the block's records in one transaction.
func (w *BlockWriter) SaveBlock(participantID string, blockNumber int, records []collector.TrialRecord) error {
	tx, err := w.store.db.Begin()
	if err != nil {
		return fmt.Errorf("save block %d: %w", blockNumber, err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if err := insertRecord(tx, w.sessionID, rec); err != nil {
			return fmt.Errorf("save block %d trial %d: %w", blockNumber, rec.TrialNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save block %d: %w", blockNumber, err)
	}
	return nil
}

func insertRecord(tx *sql.Tx, sessionID string, rec collector.TrialRecord) error {
	estimation, err := marshalOptional(rec.TimingEstimation)
	if err != nil {
		return err
	}
	reproduction, err := marshalOptional(rec.ReproductionResults)
	if err != nil {
		return err
	}
	zone, err := marshalOptional(rec.OcclusionZone)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO trial_records (
			session_id, block_number, trial_number, trial_in_block, display_order,
			trajectory_type, duration, speed, assigned_speed, assigned_duration,
			trajectory_number, condition_type, start_delay,
			start_time, movement_start_time, stimulus_start_time,
			movement_end_time, occlusion_start_time,
			reference_response_time, stimulus_presentation_time, trajectory_completion_time,
			actual_response_time_movement, actual_response_time_stimulus,
			space_press_time, reaction_time,
			stopped_by_user, completed_normally, was_visible_when_stopped,
			actual_trajectory_duration, timing_estimation, reproduction_results, occlusion_zone
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.BlockNumber, rec.TrialNumber, rec.TrialInBlock, rec.DisplayOrder,
		rec.TrajectoryType, rec.Duration, rec.Speed, rec.AssignedSpeed, rec.AssignedDuration,
		rec.TrajectoryNumber, rec.ConditionType, rec.StartDelay,
		rec.StartTime, rec.MovementStartTime, rec.StimulusStartTime,
		rec.MovementEndTime, rec.OcclusionStartTime,
		rec.ReferenceResponseTime, rec.StimulusPresentationTime, rec.TrajectoryCompletionTime,
		rec.ActualResponseTimeMovement, rec.ActualResponseTimeStimulus,
		rec.SpacePressTime, rec.ReactionTime,
		rec.StoppedByUser, rec.CompletedNormally, rec.WasVisibleWhenStopped,
		rec.ActualTrajectoryDuration, estimation, reproduction, zone,
	)
	return err
}

func marshalOptional(v any) (any, error) {
	switch x := v.(type) {
	case *collector.EstimationResult:
		if x == nil {
			return nil, nil
		}
	case *collector.ReproductionResult:
		if x == nil {
			return nil, nil
		}
	case *collector.OcclusionZone:
		if x == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record field: %w", err)
	}
	return string(data), nil
}

// Records returns a session's trial records ordered by block and
// trial number.
func (s *Store) Records(sessionID string) ([]collector.TrialRecord, error) {
	rows, err := s.db.Query(`
		SELECT block_number, trial_number, trial_in_block, display_order,
		       trajectory_type, duration, speed, assigned_speed, assigned_duration,
		       trajectory_number, condition_type, start_delay,
		       start_time, movement_start_time, stimulus_start_time,
		       movement_end_time, occlusion_start_time,
		       reference_response_time, stimulus_presentation_time, trajectory_completion_time,
		       actual_response_time_movement, actual_response_time_stimulus,
		       space_press_time, reaction_time,
		       stopped_by_user, completed_normally, was_visible_when_stopped,
		       actual_trajectory_duration, timing_estimation, reproduction_results, occlusion_zone
		FROM trial_records
		WHERE session_id = ?
		ORDER BY block_number, trial_number`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []collector.TrialRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (collector.TrialRecord, error) {
	var rec collector.TrialRecord
	var (
		assignedSpeed, assignedDuration             sql.NullFloat64
		movementStart, stimulusStart                sql.NullFloat64
		movementEnd, occlusionStart                 sql.NullFloat64
		refResponse, stimPresentation, trajComplete sql.NullFloat64
		respMovement, respStimulus                  sql.NullFloat64
		spacePress, reaction, actualDuration        sql.NullFloat64
		estimation, reproduction, zone              sql.NullString
	)

	err := rows.Scan(
		&rec.BlockNumber, &rec.TrialNumber, &rec.TrialInBlock, &rec.DisplayOrder,
		&rec.TrajectoryType, &rec.Duration, &rec.Speed, &assignedSpeed, &assignedDuration,
		&rec.TrajectoryNumber, &rec.ConditionType, &rec.StartDelay,
		&rec.StartTime, &movementStart, &stimulusStart,
		&movementEnd, &occlusionStart,
		&refResponse, &stimPresentation, &trajComplete,
		&respMovement, &respStimulus,
		&spacePress, &reaction,
		&rec.StoppedByUser, &rec.CompletedNormally, &rec.WasVisibleWhenStopped,
		&actualDuration, &estimation, &reproduction, &zone,
	)
	if err != nil {
		return rec, err
	}

	rec.AssignedSpeed = nullableFloat(assignedSpeed)
	rec.AssignedDuration = nullableFloat(assignedDuration)
	rec.MovementStartTime = nullableFloat(movementStart)
	rec.StimulusStartTime = nullableFloat(stimulusStart)
	rec.MovementEndTime = nullableFloat(movementEnd)
	rec.OcclusionStartTime = nullableFloat(occlusionStart)
	rec.ReferenceResponseTime = nullableFloat(refResponse)
	rec.StimulusPresentationTime = nullableFloat(stimPresentation)
	rec.TrajectoryCompletionTime = nullableFloat(trajComplete)
	rec.ActualResponseTimeMovement = nullableFloat(respMovement)
	rec.ActualResponseTimeStimulus = nullableFloat(respStimulus)
	rec.SpacePressTime = nullableFloat(spacePress)
	rec.ReactionTime = nullableFloat(reaction)
	rec.ActualTrajectoryDuration = nullableFloat(actualDuration)

	if estimation.Valid {
		rec.TimingEstimation = &collector.EstimationResult{}
		if err := json.Unmarshal([]byte(estimation.String), rec.TimingEstimation); err != nil {
			return rec, fmt.Errorf("decode timing_estimation: %w", err)
		}
	}
	if reproduction.Valid {
		rec.ReproductionResults = &collector.ReproductionResult{}
		if err := json.Unmarshal([]byte(reproduction.String), rec.ReproductionResults); err != nil {
			return rec, fmt.Errorf("decode reproduction_results: %w", err)
		}
	}
	if zone.Valid {
		rec.OcclusionZone = &collector.OcclusionZone{}
		if err := json.Unmarshal([]byte(zone.String), rec.OcclusionZone); err != nil {
			return rec, fmt.Errorf("decode occlusion_zone: %w", err)
		}
	}

	return rec, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
