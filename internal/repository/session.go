package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

const sessionCols = `id, user_a, user_b, last_message, last_message_time, last_message_id, active, created_at`

func scanSession(s scanner, p *model.PrivateSession) error {
	return s.Scan(&p.ID, &p.UserA, &p.UserB, &p.LastMessage, &p.LastMessageTime, &p.LastMessageID, &p.Active, &p.CreatedAt)
}

func (s *Store) FindActiveSession(ctx context.Context, a, b string) (*model.PrivateSession, error) {
	defer logger.DeferLogDuration("session.FindActive", time.Now())()
	p := &model.PrivateSession{}
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM private_sessions WHERE user_a = $1 AND user_b = $2 AND active`,
		a, b,
	)
	if err := scanSession(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.FindActive: %w", err)
	}
	return p, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.PrivateSession, error) {
	defer logger.DeferLogDuration("session.Get", time.Now())()
	p := &model.PrivateSession{}
	row := s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM private_sessions WHERE id = $1`, id)
	if err := scanSession(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.Get: %w", err)
	}
	return p, nil
}

// CreateSession reports storage.ErrConflict when the pair already has an
// active session (partial unique index uq_private_sessions_active_pair).
func (s *Store) CreateSession(ctx context.Context, p *model.PrivateSession) error {
	defer logger.DeferLogDuration("session.Create", time.Now())()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO private_sessions (id, user_a, user_b, last_message, last_message_time, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserA, p.UserB, p.LastMessage, p.LastMessageTime, p.Active, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

// UpdateSessionLastMessage never moves the cache backwards; messages with the
// same timestamp are ordered by id.
func (s *Store) UpdateSessionLastMessage(ctx context.Context, id string, msg *model.ChatMessage) error {
	defer logger.DeferLogDuration("session.UpdateLastMessage", time.Now())()
	tag, err := s.pool.Exec(ctx,
		`UPDATE private_sessions SET last_message = $2, last_message_time = $3, last_message_id = $4
		 WHERE id = $1 AND (last_message_time IS NULL OR (last_message_time, last_message_id) < ($3, $4))`,
		id, msg.Content, msg.Timestamp, msg.ID,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.UpdateLastMessage: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// either unknown or a newer message already won
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Store) DeactivateSession(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("session.Deactivate", time.Now())()
	tag, err := s.pool.Exec(ctx, `UPDATE private_sessions SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sessionRepo.Deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListActiveSessions(ctx context.Context, username string) ([]model.PrivateSession, error) {
	defer logger.DeferLogDuration("session.ListActive", time.Now())()
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM private_sessions
		 WHERE active AND (user_a = $1 OR user_b = $1)
		 ORDER BY last_message_time DESC NULLS LAST, created_at DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListActive: %w", err)
	}
	defer rows.Close()
	out := make([]model.PrivateSession, 0, 8)
	for rows.Next() {
		var p model.PrivateSession
		if err := scanSession(rows, &p); err != nil {
			return nil, fmt.Errorf("sessionRepo.ListActive scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessionRepo.ListActive rows: %w", err)
	}
	return out, nil
}
