package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/kikitorin/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.RecordingSession, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO recording_sessions (voice_profile_id, mic_source, started_at, status)
		 VALUES ($1, $2, $3, 'running')
		 RETURNING id, voice_profile_id, mic_source, started_at, ended_at, status`,
		input.VoiceProfileID, input.MicSource, input.StartedAt)
	var s repository.RecordingSession
	var endedAt *time.Time
	if err := row.Scan(&s.ID, &s.VoiceProfileID, &s.MicSource, &s.StartedAt, &endedAt, &s.Status); err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE recording_sessions SET status = $2, ended_at = $3 WHERE id = $1`,
		input.SessionID, input.Status, input.EndedAt)
	return err
}

func (r *PostgresRepository) SaveTranscript(ctx context.Context, input repository.SaveTranscriptInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcripts (session_id, content, captured_at)
		 VALUES ($1, $2, $3)`,
		input.SessionID, input.Content, input.CapturedAt)
	return err
}

func (r *PostgresRepository) ListRecentSessions(ctx context.Context, limit int) ([]repository.RecordingSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, voice_profile_id, mic_source, started_at, ended_at, status
		 FROM recording_sessions ORDER BY started_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.RecordingSession
	for rows.Next() {
		var s repository.RecordingSession
		var endedAt *time.Time
		if err := rows.Scan(&s.ID, &s.VoiceProfileID, &s.MicSource, &s.StartedAt, &endedAt, &s.Status); err != nil {
			return nil, err
		}
		s.EndedAt = endedAt
		list = append(list, s)
	}
	return list, rows.Err()
}
