package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/permit-tracker/internal/tracking"
)

var (
	ErrTrackingListNotFound = errors.New("tracking list not found")
	ErrInvalidTrackingInput = errors.New("invalid tracking input")
)

// TrackingStore is implemented by every storage driver.
type TrackingStore interface {
	GetTrackingList(ctx context.Context, userID string) (tracking.List, error)
	ListTrackingLists(ctx context.Context) ([]tracking.List, error)
	UpsertMerge(ctx context.Context, userID, destination string, area tracking.PermitArea) (tracking.List, error)
	Ping(ctx context.Context) error
	Close() error
}

// ValidateUpsert trims and checks the arguments of an UpsertMerge call.
func ValidateUpsert(userID string, area tracking.PermitArea) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidTrackingInput)
	}
	if strings.TrimSpace(area.ID) == "" {
		return "", fmt.Errorf("%w: permit area id is required", ErrInvalidTrackingInput)
	}
	return userID, nil
}

func (s *Store) GetTrackingList(ctx context.Context, userID string) (tracking.List, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return tracking.List{}, ErrTrackingListNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT document_json FROM tracking_lists WHERE user_id = ?`, userID)
	return scanTrackingList(row)
}

func (s *Store) ListTrackingLists(ctx context.Context) ([]tracking.List, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document_json FROM tracking_lists ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tracking lists: %w", err)
	}
	defer rows.Close()

	lists := []tracking.List{}
	for rows.Next() {
		list, err := scanTrackingList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking lists: %w", err)
	}
	return lists, nil
}

// UpsertMerge merges area into the user's stored list, creating the list on
// first use. A non-empty destination replaces the stored one.
func (s *Store) UpsertMerge(ctx context.Context, userID, destination string, area tracking.PermitArea) (tracking.List, error) {
	userID, err := ValidateUpsert(userID, area)
	if err != nil {
		return tracking.List{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tracking.List{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanTrackingList(tx.QueryRowContext(ctx, `SELECT document_json FROM tracking_lists WHERE user_id = ?`, userID))
	if errors.Is(err, ErrTrackingListNotFound) {
		current = tracking.List{UserID: userID}
	} else if err != nil {
		return tracking.List{}, err
	}

	now := s.now().UTC()
	merged := tracking.Merge(current, area, now)
	merged.UserID = userID
	if trimmed := strings.TrimSpace(destination); trimmed != "" {
		merged.Destination = trimmed
	}
	document, err := json.Marshal(merged)
	if err != nil {
		return tracking.List{}, fmt.Errorf("encode tracking list: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO tracking_lists (
			user_id, destination, document_json, last_updated_unix, created_at_unix, updated_at_unix
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			destination = excluded.destination,
			document_json = excluded.document_json,
			last_updated_unix = excluded.last_updated_unix,
			updated_at_unix = excluded.updated_at_unix`,
		userID,
		nullIfEmpty(merged.Destination),
		string(document),
		merged.LastUpdated.Unix(),
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return tracking.List{}, fmt.Errorf("upsert tracking list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return tracking.List{}, fmt.Errorf("commit tracking list: %w", err)
	}
	return merged, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackingList(row rowScanner) (tracking.List, error) {
	var document string
	if err := row.Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tracking.List{}, ErrTrackingListNotFound
		}
		return tracking.List{}, fmt.Errorf("scan tracking list: %w", err)
	}
	var list tracking.List
	if err := json.Unmarshal([]byte(document), &list); err != nil {
		return tracking.List{}, fmt.Errorf("decode tracking list: %w", err)
	}
	return list, nil
}
