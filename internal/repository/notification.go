package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

const notificationCols = `id, recipient, sender, content, chat_type, chat_id, message_type, is_read, created_at`

func (s *Store) SaveNotification(ctx context.Context, n *model.Notification) error {
	defer logger.DeferLogDuration("notification.Save", time.Now())()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (recipient, sender, content, chat_type, chat_id, message_type, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		n.Recipient, n.Sender, n.Content, string(n.ChatType), n.ChatID, string(n.MessageType), n.Read, n.Timestamp,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("notificationRepo.Save: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, recipient string, f storage.NotificationFilter) ([]model.Notification, error) {
	defer logger.DeferLogDuration("notification.List", time.Now())()
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE recipient = $1`
	args := []any{recipient}
	if f.UnreadOnly {
		query += ` AND NOT is_read`
	}
	if f.ChatType != "" {
		args = append(args, string(f.ChatType))
		query += ` AND chat_type = $` + strconv.Itoa(len(args))
	}
	if f.ChatID != "" {
		args = append(args, f.ChatID)
		query += ` AND chat_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.List: %w", err)
	}
	defer rows.Close()
	out := make([]model.Notification, 0, 32)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Sender, &n.Content, &n.ChatType, &n.ChatID, &n.MessageType, &n.Read, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("notificationRepo.List scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notificationRepo.List rows: %w", err)
	}
	return out, nil
}

func (s *Store) CountUnread(ctx context.Context, recipient string) (int64, error) {
	defer logger.DeferLogDuration("notification.CountUnread", time.Now())()
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient = $1 AND NOT is_read`, recipient,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.CountUnread: %w", err)
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, recipient, chatID string) (int64, error) {
	defer logger.DeferLogDuration("notification.MarkRead", time.Now())()
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE recipient = $1 AND chat_id = $2 AND NOT is_read`,
		recipient, chatID,
	)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.MarkRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	defer logger.DeferLogDuration("notification.MarkAllRead", time.Now())()
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE recipient = $1 AND NOT is_read`, recipient,
	)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.MarkAllRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer logger.DeferLogDuration("notification.DeleteBefore", time.Now())()
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.DeleteBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}
