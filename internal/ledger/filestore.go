package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"swingbot/internal/types"
)

const (
	fileStoreVersion = 1
	globalFileName   = "trades.json"
)

// fileSnapshot is the JSON document written per file.
type fileSnapshot struct {
	Version int                 `json:"version"`
	SavedAt time.Time           `json:"saved_at"`
	Records []types.TradeRecord `json:"records"`
}

// FileStore keeps the trade stream in flat JSON files under a data
// directory: one global file plus one file per symbol. Every append
// rewrites the affected files atomically (temp file + rename). Trade
// volume is low, so durability wins over write throughput.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	records  []types.TradeRecord
	bySymbol map[string][]types.TradeRecord
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		dir:      dir,
		logger:   logger,
		bySymbol: make(map[string][]types.TradeRecord),
	}, nil
}

// Load reads the global trade file. A missing file means a fresh start.
func (s *FileStore) Load(ctx context.Context) ([]types.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, globalFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("[LEDGER] No existing trade file, starting fresh", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read trade file: %w", err)
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse trade file: %w", err)
	}
	if snapshot.Version != fileStoreVersion {
		s.logger.Warn("[LEDGER] Trade file version mismatch, starting fresh",
			"file_version", snapshot.Version,
			"expected_version", fileStoreVersion,
		)
		return nil, nil
	}

	s.records = snapshot.Records
	s.bySymbol = make(map[string][]types.TradeRecord)
	for _, rec := range snapshot.Records {
		s.bySymbol[rec.Symbol] = append(s.bySymbol[rec.Symbol], rec)
	}

	return snapshot.Records, nil
}

// Append writes the record through to the global file and the symbol file.
func (s *FileStore) Append(ctx context.Context, rec types.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(s.records, rec)
	symbolRecords := append(s.bySymbol[rec.Symbol], rec)

	// Load reads only the global file, so its rename is the commit
	// point. The symbol file goes first: if the global write then fails
	// the trade is observably not recorded, and the next successful
	// append rewrites the symbol file from the committed state.
	if err := s.writeFile(symbolFileName(rec.Symbol), symbolRecords); err != nil {
		return err
	}
	if err := s.writeFile(globalFileName, records); err != nil {
		return err
	}

	s.records = records
	s.bySymbol[rec.Symbol] = symbolRecords
	return nil
}

// writeFile performs an atomic write of one snapshot file.
func (s *FileStore) writeFile(name string, records []types.TradeRecord) error {
	snapshot := fileSnapshot{
		Version: fileStoreVersion,
		SavedAt: time.Now(),
		Records: records,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trade file: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp trade file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename trade file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func symbolFileName(symbol string) string {
	return fmt.Sprintf("trades_%s.json", symbol)
}
