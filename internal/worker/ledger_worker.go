// Package worker mirrors transaction events into the spreadsheet ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
	"finboard/internal/sheets"
)

// Config tunes the retry of ledger writes that failed.
type Config struct {
	// RetryInterval is how often failed entries are retried (default: 1m).
	RetryInterval time.Duration
	// MaxRetries is how many attempts an entry gets before it is dropped (default: 5).
	MaxRetries int
	// MaxPending bounds the retry queue (default: 1000).
	MaxPending int
}

func DefaultConfig() Config {
	return Config{
		RetryInterval: time.Minute,
		MaxRetries:    5,
		MaxPending:    1000,
	}
}

type pendingEntry struct {
	entry    sheets.LedgerEntry
	attempts int
	lastErr  error
}

// LedgerWorker turns transaction events into ledger rows. Ledger failures do
// not reject the event; the entry is queued and retried on a timer.
type LedgerWorker struct {
	transactions ports.TransactionStore
	categories   ports.CategoryStore
	ledger       sheets.LedgerWriter
	config       Config

	mu      sync.Mutex
	pending []pendingEntry
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewLedgerWorker(transactions ports.TransactionStore, categories ports.CategoryStore, ledger sheets.LedgerWriter, config Config) *LedgerWorker {
	d := DefaultConfig()
	if config.RetryInterval <= 0 {
		config.RetryInterval = d.RetryInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = d.MaxRetries
	}
	if config.MaxPending <= 0 {
		config.MaxPending = d.MaxPending
	}
	return &LedgerWorker{
		transactions: transactions,
		categories:   categories,
		ledger:       ledger,
		config:       config,
	}
}

// HandleEvent is the AMQP consumer callback. A returned error requeues the
// event, so only lookup failures that may resolve on redelivery are returned.
func (w *LedgerWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	sess := auth.Session{Email: event.UserEmail}
	slog.InfoContext(ctx, "Processing transaction event",
		"type", event.Type,
		"id", event.ID,
		"year", event.Year,
		"month", event.Month)

	var entry sheets.LedgerEntry
	switch event.Type {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		tx, err := w.transactions.GetTransaction(ctx, sess, event.ID)
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction gone before ledger write, skipping", "id", event.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", event.ID, err)
		}
		entry = sheets.LedgerEntry{
			Date:          tx.Date,
			Category:      w.categoryName(ctx, sess, tx.CategoryID),
			Description:   tx.Description,
			Amount:        tx.Amount,
			Kind:          sheets.KindExpense,
			TransactionID: tx.ID,
		}
	case amqp.TransactionDeleted:
		amount, err := core.ParseAmount(event.Amount)
		if err != nil || !amount.IsPositive() {
			slog.ErrorContext(ctx, "Delete event without a usable amount, skipping", "id", event.ID, "amount", event.Amount)
			return nil
		}
		period := core.YearMonth{Year: event.Year, Month: event.Month}
		if err := period.Validate(); err != nil {
			slog.ErrorContext(ctx, "Delete event with invalid period, skipping", "id", event.ID, "error", err)
			return nil
		}
		entry = sheets.LedgerEntry{
			Date:          period.FirstDay(),
			Category:      w.categoryName(ctx, sess, event.CategoryID),
			Description:   "reversal of " + event.ID,
			Amount:        amount.Neg(),
			Kind:          sheets.KindReversal,
			TransactionID: event.ID,
		}
	default:
		return nil
	}

	w.write(ctx, pendingEntry{entry: entry})
	return nil
}

func (w *LedgerWorker) categoryName(ctx context.Context, sess auth.Session, id string) string {
	if id == "" || w.categories == nil {
		return id
	}
	c, err := w.categories.GetCategory(ctx, sess, id)
	if err != nil {
		slog.WarnContext(ctx, "Could not resolve expense type name", "category_id", id, "error", err)
		return id
	}
	return c.Name
}

// write appends p or queues it for retry.
func (w *LedgerWorker) write(ctx context.Context, p pendingEntry) {
	ref, err := w.ledger.Append(ctx, p.entry)
	if err == nil {
		slog.InfoContext(ctx, "Ledger row written",
			"id", p.entry.TransactionID,
			"kind", p.entry.Kind,
			"sheets_ref", ref)
		return
	}

	p.attempts++
	p.lastErr = err
	if p.attempts >= w.config.MaxRetries {
		slog.ErrorContext(ctx, "Ledger write failed permanently after max retries",
			"id", p.entry.TransactionID,
			"attempts", p.attempts,
			"error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) >= w.config.MaxPending {
		slog.ErrorContext(ctx, "Ledger retry queue full, dropping entry",
			"id", p.entry.TransactionID,
			"error", err)
		return
	}
	w.pending = append(w.pending, p)
	slog.WarnContext(ctx, "Ledger write failed, queued for retry",
		"id", p.entry.TransactionID,
		"attempt", p.attempts,
		"error", err)
}

// RetryPending retries every queued entry once.
func (w *LedgerWorker) RetryPending(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	slog.InfoContext(ctx, "Retrying ledger writes", "count", len(batch))
	for _, p := range batch {
		if ctx.Err() != nil {
			w.mu.Lock()
			w.pending = append(w.pending, p)
			w.mu.Unlock()
			continue
		}
		w.write(ctx, p)
	}
}

// PendingCount reports how many entries wait for a retry.
func (w *LedgerWorker) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Start launches the retry loop. Returns an error if already running.
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("ledger worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Ledger worker started",
		"retry_interval", w.config.RetryInterval,
		"max_retries", w.config.MaxRetries)
	return nil
}

// Stop ends the retry loop and waits for it, bounded by ctx.
func (w *LedgerWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Ledger worker stopped gracefully", "pending", w.PendingCount())
	case <-ctx.Done():
		slog.WarnContext(ctx, "Ledger worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *LedgerWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *LedgerWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RetryPending(ctx)
		}
	}
}
