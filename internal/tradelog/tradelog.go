// Package tradelog writes the two append-only CSV logs the orchestrator
// produces every cycle: one row per executed trade, one row per detected
// opportunity, each flushed immediately so a crash never loses a line.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
)

// RotatedPaths names the two files a Rotate call just closed off, ready for
// upload to cold storage.
type RotatedPaths struct {
	Trades        string
	Opportunities string
}

var tradesHeader = []string{"timestamp", "opportunity_id", "status", "expected_pnl", "actual_pnl", "fees", "slippage", "num_orders"}
var opportunitiesHeader = []string{"timestamp", "num_markets", "expected_profit", "mispricing_pct", "trade_vector_norm"}

// Writer owns the two CSV log files. Both are single-writer, line-flushed
// append logs; encoding/csv has no analog among the example repos' third-party
// dependencies, and a line-buffered flat file is exactly what the standard
// library's csv.Writer is built for, so no external library is warranted
// here.
type Writer struct {
	mu sync.Mutex

	tradesFile *os.File
	tradesCSV  *csv.Writer

	oppsFile *os.File
	oppsCSV  *csv.Writer
}

// Open creates or appends to trades.csv and opportunities.csv under dir,
// writing headers only when the file did not already exist.
func Open(dir string) (*Writer, error) {
	tradesPath := dir + "/trades.csv"
	oppsPath := dir + "/opportunities.csv"

	tf, tNew, err := openAppend(tradesPath)
	if err != nil {
		return nil, fmt.Errorf("opening trades log: %w", err)
	}
	of, oNew, err := openAppend(oppsPath)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("opening opportunities log: %w", err)
	}

	w := &Writer{
		tradesFile: tf,
		tradesCSV:  csv.NewWriter(tf),
		oppsFile:   of,
		oppsCSV:    csv.NewWriter(of),
	}

	if tNew {
		if err := w.tradesCSV.Write(tradesHeader); err != nil {
			return nil, err
		}
		w.tradesCSV.Flush()
	}
	if oNew {
		if err := w.oppsCSV.Write(opportunitiesHeader); err != nil {
			return nil, err
		}
		w.oppsCSV.Flush()
	}

	return w, nil
}

func openAppend(path string) (*os.File, bool, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, false, err
	}
	return f, isNew, nil
}

// WriteTrade appends one row for a completed execution attempt.
func (w *Writer) WriteTrade(tr domain.TradeResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row := []string{
		tr.CompletedAt.UTC().Format(time.RFC3339),
		tr.OpportunityID,
		string(tr.Status),
		fmt.Sprintf("%.6f", tr.ExpectedPnLUSD),
		fmt.Sprintf("%.6f", tr.ActualPnLUSD),
		fmt.Sprintf("%.6f", tr.TotalFeesUSD),
		fmt.Sprintf("%.6f", tr.TotalSlipUSD),
		fmt.Sprintf("%d", len(tr.Legs)),
	}
	if err := w.tradesCSV.Write(row); err != nil {
		return err
	}
	w.tradesCSV.Flush()
	return w.tradesCSV.Error()
}

// WriteOpportunity appends one row for a detected opportunity, whether or
// not it was ultimately executed.
func (w *Writer) WriteOpportunity(opp domain.Opportunity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var norm float64
	for _, leg := range opp.Legs {
		norm += math.Abs(leg.TradeSize)
	}

	row := []string{
		opp.DetectedAt.UTC().Format(time.RFC3339),
		fmt.Sprintf("%d", len(opp.Legs)),
		fmt.Sprintf("%.6f", opp.ExpectedProfitUSD),
		fmt.Sprintf("%.6f", opp.ProfitMetric*100),
		fmt.Sprintf("%.6f", norm),
	}
	if err := w.oppsCSV.Write(row); err != nil {
		return err
	}
	w.oppsCSV.Flush()
	return w.oppsCSV.Error()
}

// Rotate closes the current trades.csv and opportunities.csv, renames each
// to a timestamped path, and reopens fresh files (with headers) in their
// place. The caller owns uploading the returned paths to cold storage.
func (w *Writer) Rotate() (RotatedPaths, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tradesCSV.Flush()
	w.oppsCSV.Flush()

	tradesPath := w.tradesFile.Name()
	oppsPath := w.oppsFile.Name()
	if err := w.tradesFile.Close(); err != nil {
		return RotatedPaths{}, fmt.Errorf("tradelog: close trades log for rotation: %w", err)
	}
	if err := w.oppsFile.Close(); err != nil {
		return RotatedPaths{}, fmt.Errorf("tradelog: close opportunities log for rotation: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	rotatedTrades := fmt.Sprintf("%s.%s", tradesPath, stamp)
	rotatedOpps := fmt.Sprintf("%s.%s", oppsPath, stamp)
	if err := os.Rename(tradesPath, rotatedTrades); err != nil {
		return RotatedPaths{}, fmt.Errorf("tradelog: rename trades log: %w", err)
	}
	if err := os.Rename(oppsPath, rotatedOpps); err != nil {
		return RotatedPaths{}, fmt.Errorf("tradelog: rename opportunities log: %w", err)
	}

	tf, err := os.OpenFile(tradesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return RotatedPaths{}, fmt.Errorf("tradelog: reopen trades log: %w", err)
	}
	of, err := os.OpenFile(oppsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		tf.Close()
		return RotatedPaths{}, fmt.Errorf("tradelog: reopen opportunities log: %w", err)
	}

	w.tradesFile = tf
	w.tradesCSV = csv.NewWriter(tf)
	w.oppsFile = of
	w.oppsCSV = csv.NewWriter(of)

	if err := w.tradesCSV.Write(tradesHeader); err != nil {
		return RotatedPaths{}, err
	}
	w.tradesCSV.Flush()
	if err := w.oppsCSV.Write(opportunitiesHeader); err != nil {
		return RotatedPaths{}, err
	}
	w.oppsCSV.Flush()

	return RotatedPaths{Trades: rotatedTrades, Opportunities: rotatedOpps}, nil
}

// Close flushes and closes both underlying files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tradesCSV.Flush()
	w.oppsCSV.Flush()
	err1 := w.tradesFile.Close()
	err2 := w.oppsFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
