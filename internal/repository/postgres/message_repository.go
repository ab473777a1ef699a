package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/craigary/telegram-summary-bot/internal/domain"
)

// searchLimit bounds keyword queries to the most recent matches.
const searchLimit = 2000

// MessageRepository implements domain.MessageRepository for PostgreSQL.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Upsert inserts the message or replaces the existing row with the same id.
// The id encodes (group, topic, message), so an edit event lands on the same
// row and last-write-wins applies to content and timestamp.
func (r *MessageRepository) Upsert(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (id, group_id, time_stamp, user_name, content, message_id, group_name, topic_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			time_stamp = EXCLUDED.time_stamp,
			user_name = EXCLUDED.user_name,
			content = EXCLUDED.content,
			group_name = EXCLUDED.group_name
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.GroupID,
		m.TimeStamp,
		m.UserName,
		m.Content.Encode(),
		nullableInt64(m.MessageID),
		m.GroupName,
		nullableInt64(m.TopicID),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert message: %w", err)
	}
	return nil
}

// QueryWindow retrieves messages for (groupID, topicID) with timestamps at or
// after sinceMs, oldest first. A nil topicID matches only main-thread rows.
func (r *MessageRepository) QueryWindow(ctx context.Context, groupID string, topicID *int64, sinceMs int64) ([]*domain.Message, error) {
	query := `
		SELECT id, group_id, time_stamp, user_name, content, message_id, group_name, topic_id
		FROM messages
		WHERE group_id = $1
		  AND time_stamp >= $2
		  AND topic_id IS NOT DISTINCT FROM $3
		ORDER BY time_stamp ASC, message_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID, sinceMs, nullableInt64(topicID))
	if err != nil {
		return nil, fmt.Errorf("failed to query message window: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SearchByKeyword retrieves up to 2000 messages whose content contains the
// keyword, newest first. The keyword is interpolated into the LIKE pattern
// without escaping, so % and _ in user input act as wildcards (inherited glob
// semantics, kept deliberately).
func (r *MessageRepository) SearchByKeyword(ctx context.Context, groupID, keyword string) ([]*domain.Message, error) {
	query := `
		SELECT id, group_id, time_stamp, user_name, content, message_id, group_name, topic_id
		FROM messages
		WHERE group_id = $1
		  AND content LIKE '%' || $2 || '%'
		ORDER BY time_stamp DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, groupID, keyword, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// EvictOverCap deletes, independently for every group, all rows past the
// newest keep rows by timestamp.
func (r *MessageRepository) EvictOverCap(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE id IN (
			SELECT id
			FROM (
				SELECT
					id,
					ROW_NUMBER() OVER (
						PARTITION BY group_id
						ORDER BY time_stamp DESC
					) AS row_num
				FROM messages
			) ranked
			WHERE row_num > $1
		)
	`
	res, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to evict messages over cap: %w", err)
	}
	return res.RowsAffected()
}

// EvictExpiredImages deletes inline-image rows with timestamps below cutoffMs.
func (r *MessageRepository) EvictExpiredImages(ctx context.Context, cutoffMs int64) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE time_stamp < $1
		  AND content LIKE 'data:image/jpeg;base64,%'
	`
	res, err := r.db.ExecContext(ctx, query, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to evict expired images: %w", err)
	}
	return res.RowsAffected()
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	messages := make([]*domain.Message, 0)
	for rows.Next() {
		var (
			m         domain.Message
			content   string
			messageID sql.NullInt64
			topicID   sql.NullInt64
		)
		err := rows.Scan(
			&m.ID,
			&m.GroupID,
			&m.TimeStamp,
			&m.UserName,
			&content,
			&messageID,
			&m.GroupName,
			&topicID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Content = domain.DecodeContent(content)
		if messageID.Valid {
			v := messageID.Int64
			m.MessageID = &v
		}
		if topicID.Valid {
			v := topicID.Int64
			m.TopicID = &v
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
