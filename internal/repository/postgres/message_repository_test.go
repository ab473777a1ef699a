package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/craigary/telegram-summary-bot/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageColumns = []string{
	"id", "group_id", "time_stamp", "user_name", "content", "message_id", "group_name", "topic_id",
}

const upsertQuery = `
		INSERT INTO messages (id, group_id, time_stamp, user_name, content, message_id, group_name, topic_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			time_stamp = EXCLUDED.time_stamp,
			user_name = EXCLUDED.user_name,
			content = EXCLUDED.content,
			group_name = EXCLUDED.group_name
	`

func testRecord() *domain.Message {
	messageID := int64(42)
	return &domain.Message{
		ID:        "https://t.me/c/1234567890/42",
		GroupID:   "-1001234567890",
		TimeStamp: 1700000000000,
		UserName:  "alice",
		Content:   domain.TextContent("hello"),
		MessageID: &messageID,
		GroupName: "test group",
	}
}

func TestMessageRepository_Upsert(t *testing.T) {
	t.Run("insert", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
			WithArgs(
				"https://t.me/c/1234567890/42",
				"-1001234567890",
				int64(1700000000000),
				"alice",
				"hello",
				int64(42),
				"test group",
				nil,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewMessageRepository(db)
		err = repo.Upsert(context.Background(), testRecord())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("image_content_serialized_with_prefix", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		record := testRecord()
		record.Content = domain.ImageContent([]byte{0xFF, 0xD8, 0xFF})

		mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
			WithArgs(
				record.ID,
				record.GroupID,
				record.TimeStamp,
				record.UserName,
				record.Content.Encode(),
				int64(42),
				record.GroupName,
				nil,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewMessageRepository(db)
		err = repo.Upsert(context.Background(), record)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
			WillReturnError(errors.New("database error"))

		repo := NewMessageRepository(db)
		err = repo.Upsert(context.Background(), testRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert message")
	})
}

func TestMessageRepository_QueryWindow(t *testing.T) {
	windowQuery := regexp.QuoteMeta(`
		SELECT id, group_id, time_stamp, user_name, content, message_id, group_name, topic_id
		FROM messages
		WHERE group_id = $1
		  AND time_stamp >= $2
		  AND topic_id IS NOT DISTINCT FROM $3
		ORDER BY time_stamp ASC, message_id ASC
	`)

	t.Run("main_thread", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(windowQuery).
			WithArgs("-1001234567890", int64(1700000000000), nil).
			WillReturnRows(sqlmock.NewRows(messageColumns).
				AddRow("https://t.me/c/1234567890/1", "-1001234567890", int64(1700000000001), "alice", "first", int64(1), "g", nil).
				AddRow("https://t.me/c/1234567890/2", "-1001234567890", int64(1700000000002), "bob", "second", int64(2), "g", nil))

		repo := NewMessageRepository(db)
		messages, err := repo.QueryWindow(context.Background(), "-1001234567890", nil, 1700000000000)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "alice", messages[0].UserName)
		assert.Equal(t, "second", messages[1].Content.Text)
		assert.Nil(t, messages[0].TopicID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("topic_scoped", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		topicID := int64(7)
		mock.ExpectQuery(windowQuery).
			WithArgs("-1001234567890", int64(0), int64(7)).
			WillReturnRows(sqlmock.NewRows(messageColumns).
				AddRow("https://t.me/c/1234567890/7/3", "-1001234567890", int64(5), "carol", "topic msg", int64(3), "g", int64(7)))

		repo := NewMessageRepository(db)
		messages, err := repo.QueryWindow(context.Background(), "-1001234567890", &topicID, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.NotNil(t, messages[0].TopicID)
		assert.Equal(t, int64(7), *messages[0].TopicID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("image_rows_decode_to_variant", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		stored := domain.ImageContent([]byte{0xFF, 0xD8, 0xFF}).Encode()
		mock.ExpectQuery(windowQuery).
			WithArgs("-1001234567890", int64(0), nil).
			WillReturnRows(sqlmock.NewRows(messageColumns).
				AddRow("https://t.me/c/1234567890/9", "-1001234567890", int64(1), "dave", stored, int64(9), "g", nil))

		repo := NewMessageRepository(db)
		messages, err := repo.QueryWindow(context.Background(), "-1001234567890", nil, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.True(t, messages[0].Content.IsImage())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(windowQuery).
			WillReturnError(errors.New("database error"))

		repo := NewMessageRepository(db)
		messages, err := repo.QueryWindow(context.Background(), "-1001234567890", nil, 0)
		require.Error(t, err)
		assert.Nil(t, messages)
		assert.Contains(t, err.Error(), "failed to query message window")
	})
}

func TestMessageRepository_SearchByKeyword(t *testing.T) {
	searchQuery := regexp.QuoteMeta(`
		SELECT id, group_id, time_stamp, user_name, content, message_id, group_name, topic_id
		FROM messages
		WHERE group_id = $1
		  AND content LIKE '%' || $2 || '%'
		ORDER BY time_stamp DESC
		LIMIT $3
	`)

	t.Run("bounded_to_2000_newest", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(searchQuery).
			WithArgs("-1001234567890", "golang", 2000).
			WillReturnRows(sqlmock.NewRows(messageColumns).
				AddRow("https://t.me/c/1234567890/2", "-1001234567890", int64(200), "bob", "golang rocks", int64(2), "g", nil).
				AddRow("https://t.me/c/1234567890/1", "-1001234567890", int64(100), "alice", "learning golang", int64(1), "g", nil))

		repo := NewMessageRepository(db)
		messages, err := repo.SearchByKeyword(context.Background(), "-1001234567890", "golang")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(200), messages[0].TimeStamp)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(searchQuery).
			WillReturnError(errors.New("database error"))

		repo := NewMessageRepository(db)
		_, err = repo.SearchByKeyword(context.Background(), "-1001234567890", "golang")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to search messages")
	})
}

func TestMessageRepository_EvictOverCap(t *testing.T) {
	evictQuery := regexp.QuoteMeta(`
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
	`)

	t.Run("reports_deleted_rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(evictQuery).
			WithArgs(3000).
			WillReturnResult(sqlmock.NewResult(0, 5))

		repo := NewMessageRepository(db)
		deleted, err := repo.EvictOverCap(context.Background(), 3000)
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(evictQuery).
			WillReturnError(errors.New("database error"))

		repo := NewMessageRepository(db)
		_, err = repo.EvictOverCap(context.Background(), 3000)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to evict messages over cap")
	})
}

func TestMessageRepository_EvictExpiredImages(t *testing.T) {
	evictQuery := regexp.QuoteMeta(`
		DELETE FROM messages
		WHERE time_stamp < $1
		  AND content LIKE 'data:image/jpeg;base64,%'
	`)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(evictQuery).
		WithArgs(int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewMessageRepository(db)
	deleted, err := repo.EvictExpiredImages(context.Background(), 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
