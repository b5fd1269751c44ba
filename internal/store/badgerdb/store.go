// Package badgerdb stores tracking lists as one CBOR document per user in an
// embedded Badger database.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/dwizi/permit-tracker/internal/store"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

const (
	keyPrefix       = "tracking/"
	maxMergeRetries = 16
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("badgerdb: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("badgerdb: cbor decoder: " + err.Error())
	}
}

type Options struct {
	// Dir is ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

type Store struct {
	db  *badger.DB
	now func() time.Time
}

func Open(opts Options) (*Store, error) {
	dir := strings.TrimSpace(opts.Dir)
	if opts.InMemory {
		dir = ""
	} else if dir == "" {
		return nil, fmt.Errorf("badger directory is required")
	}
	badgerOpts := badger.DefaultOptions(dir).WithInMemory(opts.InMemory)
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(slogAdapter{logger: opts.Logger.With("component", "badger")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func trackingKey(userID string) []byte {
	return []byte(keyPrefix + userID)
}

func (s *Store) GetTrackingList(ctx context.Context, userID string) (tracking.List, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return tracking.List{}, store.ErrTrackingListNotFound
	}
	if err := ctx.Err(); err != nil {
		return tracking.List{}, err
	}
	var list tracking.List
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		list, err = readList(txn, userID)
		return err
	})
	return list, err
}

func (s *Store) ListTrackingLists(ctx context.Context) ([]tracking.List, error) {
	lists := []tracking.List{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var list tracking.List
			if err := it.Item().Value(func(value []byte) error {
				return decMode.Unmarshal(value, &list)
			}); err != nil {
				return fmt.Errorf("decode tracking list %s: %w", it.Item().Key(), err)
			}
			lists = append(lists, list)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lists, nil
}

// UpsertMerge runs the read-merge-write in one Badger transaction. A
// concurrent writer to the same key makes the commit fail with ErrConflict,
// in which case the merge is redone against the newer document.
func (s *Store) UpsertMerge(ctx context.Context, userID, destination string, area tracking.PermitArea) (tracking.List, error) {
	userID, err := store.ValidateUpsert(userID, area)
	if err != nil {
		return tracking.List{}, err
	}

	var merged tracking.List
	for attempt := 0; attempt < maxMergeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return tracking.List{}, err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			current, err := readList(txn, userID)
			if errors.Is(err, store.ErrTrackingListNotFound) {
				current = tracking.List{UserID: userID}
			} else if err != nil {
				return err
			}
			merged = tracking.Merge(current, area, s.now().UTC())
			merged.UserID = userID
			if trimmed := strings.TrimSpace(destination); trimmed != "" {
				merged.Destination = trimmed
			}
			document, err := encMode.Marshal(merged)
			if err != nil {
				return fmt.Errorf("encode tracking list: %w", err)
			}
			return txn.Set(trackingKey(userID), document)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return tracking.List{}, fmt.Errorf("upsert tracking list: %w", err)
	}
	return merged, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger is closed")
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func readList(txn *badger.Txn, userID string) (tracking.List, error) {
	item, err := txn.Get(trackingKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return tracking.List{}, store.ErrTrackingListNotFound
	}
	if err != nil {
		return tracking.List{}, fmt.Errorf("read tracking list: %w", err)
	}
	var list tracking.List
	if err := item.Value(func(value []byte) error {
		return decMode.Unmarshal(value, &list)
	}); err != nil {
		return tracking.List{}, fmt.Errorf("decode tracking list: %w", err)
	}
	return list, nil
}

var _ store.TrackingStore = (*Store)(nil)
