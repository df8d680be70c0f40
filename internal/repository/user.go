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

const userCols = `username, is_online, created_at, last_seen_at`

func scanUser(s scanner, u *model.User) error {
	return s.Scan(&u.Username, &u.Online, &u.CreatedAt, &u.LastSeen)
}

func (s *Store) GetUser(ctx context.Context, username string) (*model.User, error) {
	defer logger.DeferLogDuration("user.Get", time.Now())()
	u := &model.User{}
	row := s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.Get: %w", err)
	}
	return u, nil
}

// CreateUser inserts u unless the username exists; the existing row is returned then.
func (s *Store) CreateUser(ctx context.Context, u *model.User) (*model.User, bool, error) {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	out := &model.User{}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, is_online, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING `+userCols,
		u.Username, u.Online, u.CreatedAt, u.LastSeen,
	)
	err := scanUser(row, out)
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("userRepo.Create: %w", err)
	}
	existing, err := s.GetUser(ctx, u.Username)
	if err != nil {
		return nil, false, fmt.Errorf("userRepo.Create existing: %w", err)
	}
	return existing, false, nil
}

func (s *Store) UpdatePresence(ctx context.Context, username string, online bool, at time.Time) (bool, error) {
	defer logger.DeferLogDuration("user.UpdatePresence", time.Now())()
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_online = $2, last_seen_at = $3 WHERE username = $1`,
		username, online, at,
	)
	if err != nil {
		return false, fmt.Errorf("userRepo.UpdatePresence: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, username string, at time.Time) error {
	defer logger.DeferLogDuration("user.TouchLastSeen", time.Now())()
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE username = $1`, username, at)
	if err != nil {
		return fmt.Errorf("userRepo.TouchLastSeen: %w", err)
	}
	return nil
}

func (s *Store) ListOnlineUsers(ctx context.Context) ([]model.User, error) {
	defer logger.DeferLogDuration("user.ListOnline", time.Now())()
	rows, err := s.pool.Query(ctx, `SELECT `+userCols+` FROM users WHERE is_online ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListOnline: %w", err)
	}
	defer rows.Close()
	users := make([]model.User, 0, 32)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("userRepo.ListOnline scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.ListOnline rows: %w", err)
	}
	return users, nil
}

func (s *Store) ResetOnline(ctx context.Context) (int64, error) {
	defer logger.DeferLogDuration("user.ResetOnline", time.Now())()
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_online = false WHERE is_online`)
	if err != nil {
		return 0, fmt.Errorf("userRepo.ResetOnline: %w", err)
	}
	return tag.RowsAffected(), nil
}
