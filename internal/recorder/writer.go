// Package recorder persists one finished run as flat artifacts: a snapshot
// series, the trade tape, the agent's fills, and a JSON summary. Artifacts
// are line-oriented CSV so downstream tooling can consume them directly.
package recorder

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yanun0323/errors"

	"main/internal/analytics"
	"main/internal/book"
	"main/internal/sim"
)

var metricsHeader = []string{
	"timestamp", "event_type", "event_idx",
	"best_bid", "best_ask", "mid_price",
	"fundamental_price", "fundamental_gap", "spread",
	"top_bid_depth", "top_ask_depth",
	"mm_inventory", "mm_cash",
	"mm_realized_pnl", "mm_unrealized_pnl", "mm_pnl", "mm_mtm_pnl",
	"events_since_mm_refresh",
}

var tradesHeader = []string{
	"timestamp", "price", "qty",
	"taker_order_id", "maker_order_id",
	"taker_owner", "maker_owner", "taker_side",
}

var fillsHeader = []string{"timestamp", "side", "mm_side", "price", "qty"}

// Writer writes run artifacts into a single output directory.
type Writer struct {
	cfg Config
}

// NewWriter creates an artifact writer and ensures the target directory
// exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}
	return &Writer{cfg: cfg}, nil
}

// Dir returns the resolved output directory.
func (w *Writer) Dir() string { return w.cfg.Dir }

// WriteRun persists all artifacts of one run.
func (w *Writer) WriteRun(result *sim.Result, report analytics.Report) error {
	if result == nil {
		return errors.New("nil result")
	}

	tick := result.Config.TickSize
	if err := w.writeMetrics(result.Snapshots); err != nil {
		return err
	}
	if err := w.writeTrades(result.Trades, tick); err != nil {
		return err
	}
	if err := w.writeFills(result); err != nil {
		return err
	}
	return w.writeSummary(report)
}

func (w *Writer) writeMetrics(snapshots []sim.Snapshot) error {
	rows := make([][]string, 0, len(snapshots))
	for _, snap := range snapshots {
		rows = append(rows, []string{
			formatFloat(snap.Timestamp),
			snap.EventType,
			strconv.Itoa(snap.EventIdx),
			formatOptional(snap.BestBid),
			formatOptional(snap.BestAsk),
			formatFloat(snap.MidPrice),
			formatFloat(snap.FundamentalPrice),
			formatFloat(snap.FundamentalGap),
			formatOptional(snap.Spread),
			strconv.FormatInt(snap.TopBidDepth, 10),
			strconv.FormatInt(snap.TopAskDepth, 10),
			strconv.FormatInt(snap.MMInventory, 10),
			formatFloat(snap.MMCash),
			formatFloat(snap.MMRealizedPnL),
			formatFloat(snap.MMUnrealizedPnL),
			formatFloat(snap.MMPnL),
			formatFloat(snap.MMMtmPnL),
			strconv.Itoa(snap.EventsSinceMMRefresh),
		})
	}
	return w.writeCSV(metricsFile, metricsHeader, rows)
}

func (w *Writer) writeTrades(trades []book.Trade, tick float64) error {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			formatFloat(t.Timestamp),
			formatFloat(float64(t.Price) * tick),
			strconv.FormatInt(int64(t.Qty), 10),
			strconv.FormatUint(uint64(t.TakerOrderID), 10),
			strconv.FormatUint(uint64(t.MakerOrderID), 10),
			t.TakerOwner.String(),
			t.MakerOwner.String(),
			t.TakerSide.String(),
		})
	}
	return w.writeCSV(tradesFile, tradesHeader, rows)
}

func (w *Writer) writeFills(result *sim.Result) error {
	rows := make([][]string, 0, len(result.MMFills))
	for _, f := range result.MMFills {
		rows = append(rows, []string{
			formatFloat(f.Timestamp),
			f.Side,
			strconv.Itoa(f.Direction),
			formatFloat(f.Price),
			strconv.FormatInt(f.Qty, 10),
		})
	}
	return w.writeCSV(fillsFile, fillsHeader, rows)
}

func (w *Writer) writeSummary(report analytics.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}
	path := filepath.Join(w.cfg.Dir, summaryFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", summaryFile)
	}
	return nil
}

func (w *Writer) writeCSV(name string, header []string, rows [][]string) (err error) {
	path := filepath.Join(w.cfg.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", name)
		}
	}()

	buf := bufio.NewWriterSize(f, w.cfg.BufferSize)
	cw := csv.NewWriter(buf)

	if err := cw.Write(header); err != nil {
		return errors.Wrapf(err, "write %s header", name)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write %s row", name)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrapf(err, "flush %s", name)
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", name)
	}
	return nil
}

// WriteTable writes a standalone CSV, used for cross-run comparison tables.
func WriteTable(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create table dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", filepath.Base(path))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close table")
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write table header")
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write table row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "flush table")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
