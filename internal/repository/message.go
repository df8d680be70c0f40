package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

const messageCols = `id, content, sender, recipient, COALESCE(session_id, ''), message_type, created_at`

func scanMessage(s scanner, m *model.ChatMessage) error {
	return s.Scan(&m.ID, &m.Content, &m.Sender, &m.Recipient, &m.SessionID, &m.Type, &m.Timestamp)
}

func collectMessages(rows pgx.Rows, op string) ([]model.ChatMessage, error) {
	defer rows.Close()
	msgs := make([]model.ChatMessage, 0, 50)
	for rows.Next() {
		var m model.ChatMessage
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return msgs, nil
}

func (s *Store) SaveMessage(ctx context.Context, m *model.ChatMessage) error {
	defer logger.DeferLogDuration("message.Save", time.Now())()
	var sessionID *string
	if m.SessionID != "" {
		sessionID = &m.SessionID
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (content, sender, recipient, session_id, message_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		m.Content, m.Sender, m.Recipient, sessionID, string(m.Type), m.Timestamp,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("messageRepo.Save: %w", err)
	}
	return nil
}

// ListMessages pages newest first and returns the page in ascending order.
func (s *Store) ListMessages(ctx context.Context, q storage.MessageQuery) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("message.List", time.Now())()
	types := q.Types
	if len(types) == 0 {
		types = []model.MessageType{model.MessageTypeGlobal, model.MessageTypeSystem}
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM chat_messages
		 WHERE message_type = ANY($1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		names, limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.List: %w", err)
	}
	msgs, err := collectMessages(rows, "messageRepo.List")
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *Store) ListPrivateMessages(ctx context.Context, a, b string) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("message.ListPrivate", time.Now())()
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM chat_messages
		 WHERE message_type = 'PRIVATE'
		   AND ((sender = $1 AND recipient = $2) OR (sender = $2 AND recipient = $1))
		 ORDER BY created_at, id`,
		a, b,
	)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.ListPrivate: %w", err)
	}
	return collectMessages(rows, "messageRepo.ListPrivate")
}

func (s *Store) ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("message.ListSession", time.Now())()
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM chat_messages WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.ListSession: %w", err)
	}
	return collectMessages(rows, "messageRepo.ListSession")
}
