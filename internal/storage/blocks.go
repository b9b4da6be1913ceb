package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyBlocked = errors.New("target is already blocked")
	ErrNotBlocked     = errors.New("target is not blocked")
)

// BlockKind tags the variant of a blockable target.
type BlockKind string

const (
	BlockUser    BlockKind = "user"
	BlockChannel BlockKind = "channel"
)

// BlockTarget identifies a user or channel a watcher never wants
// notifications from.
type BlockTarget struct {
	Kind BlockKind
	ID   string
}

// BlockEntry is a watcher's full block list.
type BlockEntry struct {
	OwnerID         string
	BlockedUsers    map[string]struct{}
	BlockedChannels map[string]struct{}
}

func validateKind(kind BlockKind) error {
	switch kind {
	case BlockUser, BlockChannel:
		return nil
	default:
		return fmt.Errorf("unknown block kind %q", kind)
	}
}

// GetBlockEntry returns the owner's block lists. An owner with no blocks gets
// an entry with empty sets, not an error.
func (s *Store) GetBlockEntry(ctx context.Context, ownerID string) (BlockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, target_id FROM blocked_targets WHERE owner_id = ?
	`, ownerID)
	if err != nil {
		return BlockEntry{}, err
	}
	defer rows.Close()

	entry := BlockEntry{
		OwnerID:         ownerID,
		BlockedUsers:    make(map[string]struct{}),
		BlockedChannels: make(map[string]struct{}),
	}
	for rows.Next() {
		var kind BlockKind
		var targetID string
		if err := rows.Scan(&kind, &targetID); err != nil {
			return BlockEntry{}, err
		}
		switch kind {
		case BlockUser:
			entry.BlockedUsers[targetID] = struct{}{}
		case BlockChannel:
			entry.BlockedChannels[targetID] = struct{}{}
		}
	}
	return entry, rows.Err()
}

func (s *Store) Block(ctx context.Context, ownerID string, target BlockTarget) error {
	if err := validateKind(target.Kind); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_targets (owner_id, kind, target_id, created_at)
		VALUES (?, ?, ?, ?)
	`, ownerID, string(target.Kind), target.ID, time.Now().Unix())
	if isUniqueViolation(err) {
		return ErrAlreadyBlocked
	}
	return err
}

func (s *Store) Unblock(ctx context.Context, ownerID string, target BlockTarget) error {
	if err := validateKind(target.Kind); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM blocked_targets WHERE owner_id = ? AND kind = ? AND target_id = ?
	`, ownerID, string(target.Kind), target.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotBlocked
	}
	return nil
}

func (s *Store) ListBlocked(ctx context.Context, ownerID string, kind BlockKind) ([]string, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id FROM blocked_targets WHERE owner_id = ? AND kind = ? ORDER BY created_at
	`, ownerID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var targetID string
		if err := rows.Scan(&targetID); err != nil {
			return nil, err
		}
		targets = append(targets, targetID)
	}
	return targets, rows.Err()
}
