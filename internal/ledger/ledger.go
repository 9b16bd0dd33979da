package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"swingbot/internal/types"
)

// Store persists the ordered global trade stream.
type Store interface {
	// Load returns all persisted records in append order.
	Load(ctx context.Context) ([]types.TradeRecord, error)

	// Append durably writes one record. The record is already fully
	// populated (ID, sequence, cumulative profit).
	Append(ctx context.Context, rec types.TradeRecord) error

	// Close releases store resources.
	Close() error
}

// Ledger is the append-only record of executed trades across all symbols,
// with a per-symbol view and a running cumulative profit over sells.
// Appends persist synchronously before the in-memory state changes, so a
// record the caller observes is always durably written.
type Ledger struct {
	logger *slog.Logger
	store  Store

	mu        sync.RWMutex
	records   []types.TradeRecord
	bySymbol  map[string][]types.TradeRecord
	cumProfit float64
	nextSeq   int64
}

// New creates a ledger backed by the given store.
func New(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		logger:   logger,
		store:    store,
		bySymbol: make(map[string][]types.TradeRecord),
	}
}

// Load reads the persisted stream and rebuilds the in-memory views.
func (l *Ledger) Load(ctx context.Context) error {
	records, err := l.store.Load(ctx)
	if err != nil {
		return &types.PersistenceError{Op: "load", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = records
	l.bySymbol = make(map[string][]types.TradeRecord)
	l.cumProfit = 0
	l.nextSeq = 1
	for _, rec := range records {
		l.bySymbol[rec.Symbol] = append(l.bySymbol[rec.Symbol], rec)
		if rec.Profit != nil {
			l.cumProfit += *rec.Profit
		}
		if rec.Seq >= l.nextSeq {
			l.nextSeq = rec.Seq + 1
		}
	}

	l.logger.Info("[LEDGER] Loaded trade history",
		"records", len(records),
		"symbols", len(l.bySymbol),
		"cumulative_profit", l.cumProfit,
	)
	return nil
}

// Append assigns identity and running totals to the record, persists it,
// and only then commits it to memory. A store failure leaves the ledger
// unchanged and the trade must not be considered executed.
func (l *Ledger) Append(ctx context.Context, rec *types.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.ID = uuid.NewString()
	rec.Seq = l.nextSeq

	cumAfter := l.cumProfit
	if rec.Profit != nil {
		cumAfter += *rec.Profit
	}
	rec.CumulativeProfit = cumAfter

	if err := l.store.Append(ctx, *rec); err != nil {
		return &types.PersistenceError{Op: "append", Err: err}
	}

	l.nextSeq++
	l.cumProfit = cumAfter
	l.records = append(l.records, *rec)
	l.bySymbol[rec.Symbol] = append(l.bySymbol[rec.Symbol], *rec)

	l.logger.Info("[LEDGER] Trade appended",
		"seq", rec.Seq,
		"symbol", rec.Symbol,
		"side", rec.Side,
		"price", rec.Price,
		"amount", rec.Amount,
		"cumulative_profit", rec.CumulativeProfit,
	)
	return nil
}

// Query returns the ordered trades for one symbol.
func (l *Ledger) Query(symbol string) []types.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.TradeRecord, len(l.bySymbol[symbol]))
	copy(out, l.bySymbol[symbol])
	return out
}

// All returns the ordered global stream across symbols.
func (l *Ledger) All() []types.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.TradeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// CumulativeProfit is the running fold of realized profit over sells.
func (l *Ledger) CumulativeProfit() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cumProfit
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
