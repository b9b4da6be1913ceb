package storage

import "context"

// IncrementTriggerCount bumps the per-guild counter for a fired trigger word.
func (s *Store) IncrementTriggerCount(ctx context.Context, guildID, word string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trigger_stats (guild_id, word, count)
		VALUES (?, ?, 1)
		ON CONFLICT(guild_id, word) DO UPDATE SET count = count + 1
	`, guildID, word)
	return err
}

func (s *Store) TriggerCounts(ctx context.Context, guildID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT word, count FROM trigger_stats WHERE guild_id = ?
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var word string
		var count int
		if err := rows.Scan(&word, &count); err != nil {
			return nil, err
		}
		counts[word] = count
	}
	return counts, rows.Err()
}
