package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"recsync/internal/cache"
	"recsync/internal/config"
	"recsync/internal/logging"
	"recsync/internal/notifications"
	"recsync/internal/protocol"
	"recsync/internal/tablestore"
	"recsync/internal/transport"
)

const (
	clientIDKey = "client/id"
	lockFile    = "recsyncd.lock"
)

// Transport is the HTTP surface the engine drives. *transport.Client
// satisfies it; tests substitute scripted implementations.
type Transport interface {
	Probe(ctx context.Context) error
	Exchange(ctx context.Context, envelope string) (string, error)
	Poll(ctx context.Context, sessionCredential string) (bool, error)
}

// CompletionFunc receives a transaction once its result fields are final.
// It runs on the engine's control goroutine and must not block.
type CompletionFunc func(tx *protocol.Transaction)

// Option customizes an Engine at construction time.
type Option func(*Engine)

// WithNotifier replaces the notification service derived from configuration.
func WithNotifier(service notifications.Service) Option {
	return func(e *Engine) { e.notifier = service }
}

// WithTables replaces the table store read responses merge into.
func WithTables(tables *tablestore.Store) Option {
	return func(e *Engine) { e.tables = tables }
}

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRefreshFunc registers a callback fired after each processed response.
func WithRefreshFunc(fn func()) Option {
	return func(e *Engine) { e.refresh = fn }
}

// WithUserInfoFunc registers the receiver for the user-info field of a
// session-start response.
func WithUserInfoFunc(fn func(info string)) Option {
	return func(e *Engine) { e.userInfo = fn }
}

// Engine owns the pending transaction queue and drives the sync protocol.
// All queue and container mutation happens on the control goroutine; Enqueue,
// Dequeue, and Status are safe to call from anywhere.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *cache.Store
	journal   *Journal
	transport Transport
	notifier  notifications.Service
	tables    *tablestore.Store

	now      func() time.Time
	refresh  func()
	userInfo func(info string)

	lock *flock.Flock

	mu          sync.Mutex
	pending     []*protocol.Transaction
	handlers    map[int64]CompletionFunc
	session     session
	inflight    int
	pausedUntil time.Time
	urlVerified bool
	offline     bool
	clientID    string
	cancel      context.CancelFunc

	// container is only touched by the control goroutine.
	container protocol.Container

	wg sync.WaitGroup
}

// New assembles an engine around a cache store and a transport. The zero
// options give a production engine; tests swap the clock and notifier.
func New(cfg *config.Config, store *cache.Store, tp Transport, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "engine"),
		store:     store,
		journal:   NewJournal(store),
		transport: tp,
		notifier:  notifications.NewService(cfg),
		tables:    tablestore.New(),
		now:       time.Now,
		handlers:  make(map[int64]CompletionFunc),
		session:   newSession(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Journal exposes the transaction storage for inspection commands.
func (e *Engine) Journal() *Journal { return e.journal }

// Tables exposes the table store fed by read responses.
func (e *Engine) Tables() *tablestore.Store { return e.tables }

// Start acquires the single-instance lock, restores persisted state, and
// launches the control goroutine. It returns once the engine is running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.mu.Unlock()

	lock := flock.New(filepath.Join(e.cfg.Paths.StateDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", lock.Path())
	}
	e.lock = lock

	if err := e.bootstrap(ctx); err != nil {
		e.lock.Unlock()
		e.lock = nil
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(runCtx)

	e.logger.Info("engine started",
		logging.Duration("tick_interval", e.cfg.TickInterval()),
		logging.Int("max_batch", e.cfg.Engine.MaxBatch))
	return nil
}

// Stop cancels the control goroutine, waits for it, and releases the
// single-instance lock.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			e.logger.Warn("release state lock", logging.Error(err))
		}
		e.lock = nil
	}
	e.logger.Info("engine stopped")
}

// bootstrap restores persisted state: the client install id, the last
// session credential, and the pending write queue. Persisted reads are
// stale by definition and are discarded. A fresh session-start transaction
// is placed at the front of the queue.
func (e *Engine) bootstrap(ctx context.Context) error {
	clientID, ok, err := e.store.Get(ctx, clientIDKey)
	if err != nil {
		return err
	}
	if !ok {
		clientID = uuid.NewString()
		if err := e.store.Put(ctx, clientIDKey, clientID); err != nil {
			return err
		}
	}

	credential, _, err := e.store.Get(ctx, CredentialKey)
	if err != nil {
		return err
	}

	stored, err := e.journal.LoadPending(ctx)
	if err != nil {
		return err
	}
	restored := make([]*protocol.Transaction, 0, len(stored))
	for _, tx := range stored {
		if !tx.Type.Write() {
			if err := e.journal.DeletePending(ctx, tx.ID); err != nil {
				return err
			}
			continue
		}
		restored = append(restored, tx)
	}

	e.mu.Lock()
	e.clientID = clientID
	e.session.credential = credential
	e.pending = restored
	e.mu.Unlock()

	if len(restored) > 0 {
		e.logger.Info("restored pending transactions", logging.Int("count", len(restored)))
	}

	return e.queueSessionStart(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick performs one scheduler pass. Steps run in a fixed order: the URL
// verification gate, the backoff gate, container build and exchange, session
// regeneration, keep-alive, and finally the update-check poll.
func (e *Engine) tick(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	verified := e.urlVerified
	paused := now.Before(e.pausedUntil)
	e.mu.Unlock()

	if !verified {
		e.verifyURL(ctx)
		return
	}
	if paused {
		return
	}

	e.sendCycle(ctx, now)
	e.maybeRegenerateSession(ctx, now)
	if e.maybeKeepAlive(ctx, now) {
		return
	}
	e.maybeCheckUpdates(ctx, now)
}

// verifyURL probes the server before any traffic is attempted. The first
// failed probe raises a connectivity notification; the recovery probe raises
// the matching restore and queues a session start if none is pending.
func (e *Engine) verifyURL(ctx context.Context) {
	if err := e.transport.Probe(ctx); err != nil {
		failure := transport.Classify(err)
		e.logger.Warn("server unreachable",
			logging.String(logging.FieldResultCode, failure.Code.String()),
			logging.Error(err))

		e.mu.Lock()
		wasOffline := e.offline
		e.offline = true
		e.mu.Unlock()
		if !wasOffline {
			if nerr := e.notifier.NotifyConnectivityLost(ctx, failure); nerr != nil {
				e.logger.Debug("connectivity notification", logging.Error(nerr))
			}
		}
		return
	}

	e.mu.Lock()
	wasOffline := e.offline
	e.offline = false
	e.urlVerified = true
	needSession := !e.session.started && !e.hasPendingLocked(protocol.TxSession, "")
	e.mu.Unlock()

	e.logger.Info("server verified")
	if wasOffline {
		if err := e.notifier.NotifyConnectivityRestored(ctx); err != nil {
			e.logger.Debug("connectivity notification", logging.Error(err))
		}
	}
	if needSession {
		if err := e.queueSessionStart(ctx); err != nil {
			e.logger.Error("queue session start", logging.Error(err))
		}
	}
}

// sendCycle builds a container from the head of the pending queue and
// exchanges it. It is a no-op when the queue is empty. Transactions stay in
// the pending queue while in flight; they leave it only on resolution, so a
// short response needs no re-queue step.
func (e *Engine) sendCycle(ctx context.Context, now time.Time) {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return
	}
	if err := e.container.Reset(); err != nil {
		e.mu.Unlock()
		e.logger.Error("container reset", logging.Error(err))
		return
	}
	batch := e.pending
	if max := e.cfg.Engine.MaxBatch; max > 0 && len(batch) > max {
		batch = batch[:max]
	}
	nowMillis := now.UnixMilli()
	for _, tx := range batch {
		tx.SentAt = nowMillis
		e.container.Append(tx)
	}
	envelope := e.container.Build(e.cfg.Server.UserID, e.session.credential)
	containerID := e.container.ID()
	e.inflight = len(batch)
	e.session.lastActivity = now
	e.mu.Unlock()

	// Refresh stored records so SentAt survives a crash mid-exchange.
	for _, tx := range batch {
		if err := e.journal.WritePending(ctx, tx); err != nil {
			e.logger.Warn("persist sent transaction",
				logging.Int64(logging.FieldTxID, tx.ID), logging.Error(err))
		}
	}

	e.logger.Debug("container sent",
		logging.Int64(logging.FieldContainerID, containerID),
		logging.Int("transactions", len(batch)))

	response, err := e.transport.Exchange(ctx, envelope)
	if err != nil {
		e.onTransportFailure(ctx, err)
	} else {
		e.container.ProcessResponse(response, e.now().UnixMilli(), e)
	}

	e.mu.Lock()
	e.inflight = 0
	e.mu.Unlock()
}

// onTransportFailure classifies an exchange error, opens the backoff window,
// and fails the in-flight batch. Connection failures and redirects also
// invalidate the verified URL so the probe gate runs again.
func (e *Engine) onTransportFailure(ctx context.Context, err error) {
	failure := transport.Classify(err)
	result := failure.Result()
	now := e.now()

	e.mu.Lock()
	e.pausedUntil = now.Add(e.cfg.FailureBackoff())
	wasOffline := e.offline
	switch result.Code {
	case protocol.ResultConnectionFailed:
		e.urlVerified = false
		e.offline = true
	case protocol.ResultRedirected:
		e.urlVerified = false
	}
	e.mu.Unlock()

	e.logger.Warn("container exchange failed",
		logging.String(logging.FieldResultCode, result.Code.String()),
		logging.Duration("backoff", e.cfg.FailureBackoff()),
		logging.Error(err))

	switch {
	case result.Code == protocol.ResultRedirected:
		if nerr := e.notifier.NotifyLoginRequired(ctx, "server address changed"); nerr != nil {
			e.logger.Debug("login notification", logging.Error(nerr))
		}
	case result.Code == protocol.ResultConnectionFailed && !wasOffline:
		if nerr := e.notifier.NotifyConnectivityLost(ctx, failure); nerr != nil {
			e.logger.Debug("connectivity notification", logging.Error(nerr))
		}
	}

	e.container.FailAll(result, now.UnixMilli(), e)
}

func (e *Engine) maybeRegenerateSession(ctx context.Context, now time.Time) {
	e.mu.Lock()
	due := e.session.regenerationDue(now)
	e.mu.Unlock()
	if !due {
		return
	}
	e.logger.Info("session nearing expiry, regenerating")
	if err := e.queueSessionStart(ctx); err != nil {
		e.logger.Error("queue session start", logging.Error(err))
	}
}

func (e *Engine) maybeKeepAlive(ctx context.Context, now time.Time) bool {
	e.mu.Lock()
	due := e.session.keepAliveDue(now) && len(e.pending) == 0
	if due {
		e.session.lastActivity = now
	}
	e.mu.Unlock()
	if !due {
		return false
	}
	if _, err := e.Enqueue(ctx, protocol.TxNop, "", nil, nil); err != nil {
		e.logger.Error("queue keep-alive", logging.Error(err))
	}
	return true
}

func (e *Engine) maybeCheckUpdates(ctx context.Context, now time.Time) {
	e.mu.Lock()
	due := e.session.updateCheckDue(now)
	credential := e.session.credential
	listQueued := e.hasPendingLocked(protocol.TxList, protocol.TargetModified)
	if due {
		e.session.lastUpdateCheck = now
	}
	e.mu.Unlock()
	if !due {
		return
	}

	changed, err := e.transport.Poll(ctx, credential)
	if err != nil {
		e.logger.Warn("update poll failed", logging.Error(err))
		return
	}
	if !changed || listQueued {
		return
	}
	e.logger.Debug("remote changes reported, queueing list")
	if _, err := e.Enqueue(ctx, protocol.TxList, protocol.TargetModified, nil, nil); err != nil {
		e.logger.Error("queue modified list", logging.Error(err))
	}
}

// Enqueue allocates a transaction id, persists the record, and appends the
// transaction to the pending queue. SESSION transactions jump to the front
// so a login always precedes queued work. The optional completion callback
// fires once the transaction resolves, successfully or not.
func (e *Engine) Enqueue(ctx context.Context, txType protocol.TxType, target string, fields []protocol.Field, done CompletionFunc) (*protocol.Transaction, error) {
	if !protocol.KnownTxType(string(txType)) {
		return nil, fmt.Errorf("unknown transaction type %q", txType)
	}

	id, err := e.journal.NextID(ctx)
	if err != nil {
		return nil, err
	}
	tx := protocol.NewTransaction(id, txType, target, fields)
	if err := e.journal.WritePending(ctx, tx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if txType == protocol.TxSession {
		e.pending = append([]*protocol.Transaction{tx}, e.pending...)
	} else {
		e.pending = append(e.pending, tx)
	}
	if done != nil {
		e.handlers[id] = done
	}
	e.mu.Unlock()

	e.logger.Debug("transaction queued",
		logging.Int64(logging.FieldTxID, id),
		logging.String(logging.FieldTxType, string(txType)),
		logging.String(logging.FieldTarget, target))
	return tx, nil
}

// Dequeue removes a not-yet-resolved transaction from the pending queue and
// deletes its stored record.
func (e *Engine) Dequeue(ctx context.Context, id int64) error {
	e.mu.Lock()
	removed := e.removePendingLocked(id)
	delete(e.handlers, id)
	e.mu.Unlock()
	if !removed {
		return fmt.Errorf("transaction %d is not pending", id)
	}
	return e.journal.DeletePending(ctx, id)
}

func (e *Engine) queueSessionStart(ctx context.Context) error {
	e.mu.Lock()
	fields := []protocol.Field{
		{Key: "user", Value: e.cfg.Server.UserID},
		{Key: "client", Value: e.clientID},
	}
	e.mu.Unlock()

	if _, err := e.Enqueue(ctx, protocol.TxSession, "", fields, nil); err != nil {
		return err
	}
	e.mu.Lock()
	e.session.regenQueued = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) hasPendingLocked(txType protocol.TxType, target string) bool {
	for _, tx := range e.pending {
		if tx.Type == txType && tx.Target == target {
			return true
		}
	}
	return false
}

func (e *Engine) removePendingLocked(id int64) bool {
	for i, tx := range e.pending {
		if tx.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Resolve implements protocol.Dispatcher. It stamps the close time, removes
// the transaction from the pending queue and storage, routes successful
// results by type, archives the record, and fires the registered callback.
func (e *Engine) Resolve(tx *protocol.Transaction) {
	ctx := context.Background()
	now := e.now()
	tx.ClosedAt = now.UnixMilli()

	e.mu.Lock()
	e.removePendingLocked(tx.ID)
	handler := e.handlers[tx.ID]
	delete(e.handlers, tx.ID)
	e.mu.Unlock()

	if err := e.journal.DeletePending(ctx, tx.ID); err != nil {
		e.logger.Warn("delete pending record",
			logging.Int64(logging.FieldTxID, tx.ID), logging.Error(err))
	}

	if tx.ResultCode.Success() {
		e.logger.Debug("transaction resolved",
			logging.Int64(logging.FieldTxID, tx.ID),
			logging.String(logging.FieldTxType, string(tx.Type)),
			logging.String(logging.FieldResultCode, tx.ResultCode.String()))
		switch tx.Type {
		case protocol.TxSession:
			e.adoptSession(ctx, tx, now)
		case protocol.TxList, protocol.TxSelect:
			e.tables.Merge(tx.Type, tx.Target, tx.ResultMessage)
		}
		if err := e.journal.WriteDone(ctx, tx); err != nil {
			e.logger.Warn("archive transaction",
				logging.Int64(logging.FieldTxID, tx.ID), logging.Error(err))
		}
	} else {
		e.logger.Error("transaction failed",
			logging.Int64(logging.FieldTxID, tx.ID),
			logging.String(logging.FieldTxType, string(tx.Type)),
			logging.String(logging.FieldResultCode, tx.ResultCode.String()),
			logging.String("result_message", tx.ResultMessage))
		if err := e.journal.WriteFailed(ctx, tx); err != nil {
			e.logger.Warn("archive transaction",
				logging.Int64(logging.FieldTxID, tx.ID), logging.Error(err))
		}
	}

	if handler != nil {
		handler(tx)
	}
}

func (e *Engine) adoptSession(ctx context.Context, tx *protocol.Transaction, now time.Time) {
	e.mu.Lock()
	e.session.adopt(tx.ResultMessage, now)
	credential := e.session.credential
	welcome := e.session.welcome
	info := e.session.userInfo
	e.mu.Unlock()

	if credential != "" {
		if err := e.store.Put(ctx, CredentialKey, credential); err != nil {
			e.logger.Warn("persist session credential", logging.Error(err))
		}
	}
	if welcome != "" {
		e.logger.Info("session established", logging.String("welcome", welcome))
	}
	if info != "" && e.userInfo != nil {
		e.userInfo(info)
	}
}

// AuthFailed implements protocol.Dispatcher. Stored credentials are stale:
// purge queued SESSION transactions, invalidate the session, drop the
// persisted credential, and tell the user to log in again.
func (e *Engine) AuthFailed(result protocol.Result) {
	ctx := context.Background()

	e.mu.Lock()
	kept := e.pending[:0]
	var purged []int64
	for _, tx := range e.pending {
		if tx.Type == protocol.TxSession {
			purged = append(purged, tx.ID)
			delete(e.handlers, tx.ID)
			continue
		}
		kept = append(kept, tx)
	}
	e.pending = kept
	e.session.invalidate()
	e.mu.Unlock()

	for _, id := range purged {
		if err := e.journal.DeletePending(ctx, id); err != nil {
			e.logger.Warn("delete pending record",
				logging.Int64(logging.FieldTxID, id), logging.Error(err))
		}
	}
	if err := e.store.Delete(ctx, CredentialKey); err != nil {
		e.logger.Warn("drop stored credential", logging.Error(err))
	}

	e.logger.Error("authentication rejected",
		logging.String(logging.FieldResultCode, result.Code.String()),
		logging.String("result_message", result.Message))
	if err := e.notifier.NotifyLoginRequired(ctx, result.Message); err != nil {
		e.logger.Debug("login notification", logging.Error(err))
	}
}

// ResponseProcessed implements protocol.Dispatcher.
func (e *Engine) ResponseProcessed() {
	e.mu.Lock()
	e.session.lastActivity = e.now()
	e.mu.Unlock()
	if e.refresh != nil {
		e.refresh()
	}
}

// Status is a point-in-time snapshot of engine state for CLI display.
type Status struct {
	State         string
	Pending       int
	InFlight      int
	SessionActive bool
	Welcome       string
	Offline       bool
	PausedUntil   time.Time
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	state := "idle"
	switch {
	case !e.urlVerified:
		state = "unverified"
	case e.inflight > 0:
		state = "awaiting-response"
	case now.Before(e.pausedUntil):
		state = "paused"
	}

	return Status{
		State:         state,
		Pending:       len(e.pending),
		InFlight:      e.inflight,
		SessionActive: e.session.started,
		Welcome:       e.session.welcome,
		Offline:       e.offline,
		PausedUntil:   e.pausedUntil,
	}
}
