package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"recsync/internal/cache"
	"recsync/internal/protocol"
)

const (
	pendingPrefix = "pending/"
	donePrefix    = "done/"
	failedPrefix  = "failed/"

	txKeyPrefix = "tx-"
	maxIDKey    = pendingPrefix + "tx-max"

	// historyWindow is how far behind the id high-water mark done and
	// failed records are kept before pruning.
	historyWindow = 100
)

// Journal persists transaction records in the key/value cache. Pending
// entries are the crash-recovery source of truth; done and failed entries
// form a bounded history pruned against the id high-water mark.
type Journal struct {
	store *cache.Store
}

// NewJournal wraps a cache store with the transaction key layout.
func NewJournal(store *cache.Store) *Journal {
	return &Journal{store: store}
}

func txKey(prefix string, id int64) string {
	return prefix + txKeyPrefix + strconv.FormatInt(id, 10)
}

// MaxID returns the persisted id high-water mark, zero when absent.
func (j *Journal) MaxID(ctx context.Context) (int64, error) {
	value, ok, err := j.store.Get(ctx, maxIDKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt id high-water mark %q: %w", value, err)
	}
	return id, nil
}

// NextID allocates the next transaction id and persists the new high-water
// mark before returning it, so ids survive restarts without reuse.
func (j *Journal) NextID(ctx context.Context) (int64, error) {
	maxID, err := j.MaxID(ctx)
	if err != nil {
		return 0, err
	}
	next := maxID + 1
	if err := j.store.Put(ctx, maxIDKey, strconv.FormatInt(next, 10)); err != nil {
		return 0, err
	}
	return next, nil
}

// WritePending stores or refreshes the pending record for a transaction.
func (j *Journal) WritePending(ctx context.Context, tx *protocol.Transaction) error {
	return j.store.Put(ctx, txKey(pendingPrefix, tx.ID), tx.MarshalRecord())
}

// DeletePending removes a transaction's pending record.
func (j *Journal) DeletePending(ctx context.Context, id int64) error {
	return j.store.Delete(ctx, txKey(pendingPrefix, id))
}

// WriteDone stores a resolved transaction in done history and prunes old
// history entries.
func (j *Journal) WriteDone(ctx context.Context, tx *protocol.Transaction) error {
	if err := j.store.Put(ctx, txKey(donePrefix, tx.ID), tx.MarshalRecord()); err != nil {
		return err
	}
	return j.prune(ctx, donePrefix)
}

// WriteFailed stores a failed transaction in failed history and prunes old
// history entries.
func (j *Journal) WriteFailed(ctx context.Context, tx *protocol.Transaction) error {
	if err := j.store.Put(ctx, txKey(failedPrefix, tx.ID), tx.MarshalRecord()); err != nil {
		return err
	}
	return j.prune(ctx, failedPrefix)
}

// prune deletes history entries whose id sits more than historyWindow below
// the current high-water mark.
func (j *Journal) prune(ctx context.Context, prefix string) error {
	maxID, err := j.MaxID(ctx)
	if err != nil {
		return err
	}
	cutoff := maxID - historyWindow
	if cutoff <= 0 {
		return nil
	}
	entries, err := j.store.ListPrefix(ctx, prefix+txKeyPrefix)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		id, ok := parseTxKey(entry.Key, prefix)
		if !ok {
			continue
		}
		if id < cutoff {
			if err := j.store.Delete(ctx, entry.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseTxKey(key, prefix string) (int64, bool) {
	rest, found := strings.CutPrefix(key, prefix+txKeyPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LoadPending reads all persisted pending transactions ordered by id.
// Corrupt records are dropped from storage rather than blocking startup.
func (j *Journal) LoadPending(ctx context.Context) ([]*protocol.Transaction, error) {
	entries, err := j.store.ListPrefix(ctx, pendingPrefix+txKeyPrefix)
	if err != nil {
		return nil, err
	}

	var txs []*protocol.Transaction
	for _, entry := range entries {
		if entry.Key == maxIDKey {
			continue
		}
		if _, ok := parseTxKey(entry.Key, pendingPrefix); !ok {
			continue
		}
		tx, err := protocol.UnmarshalRecord(entry.Value)
		if err != nil {
			if delErr := j.store.Delete(ctx, entry.Key); delErr != nil {
				return nil, delErr
			}
			continue
		}
		txs = append(txs, tx)
	}

	sort.Slice(txs, func(i, k int) bool { return txs[i].ID < txs[k].ID })
	return txs, nil
}

// DeleteFailed removes the failed-history record for a transaction id.
func (j *Journal) DeleteFailed(ctx context.Context, id int64) error {
	return j.store.Delete(ctx, txKey(failedPrefix, id))
}

// ClearDone removes the entire done history. Returns the number of records
// removed.
func (j *Journal) ClearDone(ctx context.Context) (int64, error) {
	return j.store.DeletePrefix(ctx, donePrefix+txKeyPrefix)
}

// ClearFailed removes the entire failed history. Returns the number of
// records removed.
func (j *Journal) ClearFailed(ctx context.Context) (int64, error) {
	return j.store.DeletePrefix(ctx, failedPrefix+txKeyPrefix)
}

// Counts returns the number of stored pending, done, and failed records.
func (j *Journal) Counts(ctx context.Context) (pending, done, failed int, err error) {
	pending, err = j.store.CountPrefix(ctx, pendingPrefix+txKeyPrefix)
	if err != nil {
		return 0, 0, 0, err
	}
	// The high-water mark key shares the pending prefix.
	if pending > 0 {
		pending--
	}
	done, err = j.store.CountPrefix(ctx, donePrefix+txKeyPrefix)
	if err != nil {
		return 0, 0, 0, err
	}
	failed, err = j.store.CountPrefix(ctx, failedPrefix+txKeyPrefix)
	if err != nil {
		return 0, 0, 0, err
	}
	return pending, done, failed, nil
}

// ListDone returns the archived successful records ordered by id.
func (j *Journal) ListDone(ctx context.Context) ([]*protocol.Transaction, error) {
	return j.List(ctx, donePrefix)
}

// ListFailed returns the archived failed records ordered by id.
func (j *Journal) ListFailed(ctx context.Context) ([]*protocol.Transaction, error) {
	return j.List(ctx, failedPrefix)
}

// List returns the stored records under one of the history prefixes, ordered
// by id.
func (j *Journal) List(ctx context.Context, prefix string) ([]*protocol.Transaction, error) {
	entries, err := j.store.ListPrefix(ctx, prefix+txKeyPrefix)
	if err != nil {
		return nil, err
	}
	var txs []*protocol.Transaction
	for _, entry := range entries {
		if entry.Key == maxIDKey {
			continue
		}
		tx, err := protocol.UnmarshalRecord(entry.Value)
		if err != nil {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, k int) bool { return txs[i].ID < txs[k].ID })
	return txs, nil
}
