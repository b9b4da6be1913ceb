package storage

import (
	"context"
	"errors"
	"time"
)

// ErrWordExists reports a duplicate trigger-word registration for the same
// user and guild.
var ErrWordExists = errors.New("trigger word already registered")

type TriggerWord struct {
	ID        int64
	Word      string
	UserID    string
	GuildID   string
	CreatedAt time.Time
}

// AddTriggerWord inserts a registration inside a transaction so a uniqueness
// violation rolls back and surfaces as ErrWordExists.
func (s *Store) AddTriggerWord(ctx context.Context, word, userID, guildID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trigger_words (word, user_id, guild_id, created_at)
		VALUES (?, ?, ?, ?)
	`, word, userID, guildID, time.Now().Unix())
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrWordExists
		}
		return err
	}
	return tx.Commit()
}

// RemoveTriggerWord deletes a registration and reports whether it existed.
func (s *Store) RemoveTriggerWord(ctx context.Context, word, userID, guildID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM trigger_words WHERE word = ? AND user_id = ? AND guild_id = ?
	`, word, userID, guildID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListTriggerWords(ctx context.Context, userID, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT word FROM trigger_words WHERE user_id = ? AND guild_id = ? ORDER BY created_at
	`, userID, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, rows.Err()
}

// TriggerWordsFor returns every registration of the exact word in a guild.
func (s *Store) TriggerWordsFor(ctx context.Context, word, guildID string) ([]TriggerWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, word, user_id, guild_id, created_at
		FROM trigger_words
		WHERE word = ? AND guild_id = ?
	`, word, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TriggerWord
	for rows.Next() {
		var record TriggerWord
		var created int64
		if err := rows.Scan(&record.ID, &record.Word, &record.UserID, &record.GuildID, &created); err != nil {
			return nil, err
		}
		record.CreatedAt = time.Unix(created, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

// DistinctWords returns the deduplicated set of all registered words, used to
// seed the in-memory word index.
func (s *Store) DistinctWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT word FROM trigger_words`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, rows.Err()
}
