// Command sweep runs the layered experiment grid: a v1 control bundle and a
// v2 realism bundle, each with baseline, imbalance, and informed-flow
// scenarios plus latency and toxicity sweeps, then writes cross-bundle
// comparison tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/analytics"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/sim"
	"main/internal/store"
)

type args struct {
	configPath  string
	outputDir   string
	latencies   []int
	toxicities  []float64
	informedP   float64
	v2FundRate  float64
	v2FundJump  int64
	v2AdaptProb float64
	v2AdaptQty  int64
	workers     int
	postgresDSN string
}

func parseArgs() (args, error) {
	configPath := flag.String("config", "", "JSON base config (default: built-in baseline)")
	outputDir := flag.String("output-dir", "outputs/experiments", "Output directory")
	latencyValues := flag.String("latency-values", "1,5,10,20", "Comma-separated K values")
	toxicityValues := flag.String("toxicity-values", "0.0,0.1,0.3,0.6", "Comma-separated p_informed values")
	informedP := flag.Float64("informed-default-p", 0.3, "p_informed for the main informed-flow scenario")
	v2FundRate := flag.Float64("v2-fundamental-rate", 3.0, "Exogenous fundamental move rate in v2")
	v2FundJump := flag.Int64("v2-fundamental-jump", 1, "Fundamental jump size (ticks) in v2")
	v2AdaptProb := flag.Float64("v2-slow-adapt-prob", 0.45, "Slow-adaptation probability in v2")
	v2AdaptQty := flag.Int64("v2-slow-adapt-max-qty", 4, "Max adaptation qty step in v2")
	workers := flag.Int("workers", 4, "Concurrent simulation workers")
	postgresDSN := flag.String("postgres-dsn", "", "Optional PostgreSQL DSN for scenario summaries")
	flag.Parse()

	latencies, err := parseIntList(*latencyValues)
	if err != nil {
		return args{}, errors.Wrap(err, "latency-values")
	}
	if len(latencies) == 0 {
		return args{}, errors.New("latency-values must contain at least one positive integer")
	}
	toxicities, err := parseFloatList(*toxicityValues)
	if err != nil {
		return args{}, errors.Wrap(err, "toxicity-values")
	}
	if len(toxicities) == 0 {
		return args{}, errors.New("toxicity-values must contain at least one value")
	}
	if *workers < 1 {
		return args{}, errors.New("workers must be >= 1")
	}

	return args{
		configPath:  *configPath,
		outputDir:   *outputDir,
		latencies:   latencies,
		toxicities:  toxicities,
		informedP:   *informedP,
		v2FundRate:  *v2FundRate,
		v2FundJump:  *v2FundJump,
		v2AdaptProb: *v2AdaptProb,
		v2AdaptQty:  *v2AdaptQty,
		workers:     *workers,
		postgresDSN: *postgresDSN,
	}, nil
}

// scenarioResult is one named run summary within a bundle.
type scenarioResult struct {
	name   string
	report analytics.Report
}

type sweepRow struct {
	key    float64
	report analytics.Report
}

type bundleResult struct {
	scenarios []scenarioResult
	latency   []sweepRow
	toxicity  []sweepRow
}

func main() {
	a, err := parseArgs()
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	base, err := ops.LoadOrDefault(a.configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := cleanOutput(a.outputDir); err != nil {
		log.Fatalf("output cleanup failed: %v", err)
	}

	var db *store.Store
	if a.postgresDSN != "" {
		db, err = store.Open(a.postgresDSN)
		if err != nil {
			log.Fatalf("store open failed: %v", err)
		}
		defer func() {
			_ = db.Close()
		}()
	}

	v1 := applyV1(base)
	v2 := applyV2(base, a)

	runner := &bundleRunner{args: a, db: db}

	v1Result, err := runner.runBundle("v1_control", v1)
	if err != nil {
		log.Fatalf("v1 bundle failed: %v", err)
	}
	v2Result, err := runner.runBundle("v2_realism", v2)
	if err != nil {
		log.Fatalf("v2 bundle failed: %v", err)
	}

	if err := writeComparisons(a.outputDir, v1Result, v2Result); err != nil {
		log.Fatalf("comparison write failed: %v", err)
	}

	printBundle("v1_control", v1Result)
	printBundle("v2_realism", v2Result)
	logs.Infof("saved layered experiment artifacts to %s", a.outputDir)
}

// applyV1 pins the control environment: immediate impact, no exogenous
// fundamental drift.
func applyV1(base sim.Config) sim.Config {
	cfg := base
	cfg.EnvironmentMode = sim.ModeV1Control
	cfg.Flow.FundamentalRate = 0
	return cfg
}

func applyV2(base sim.Config, a args) sim.Config {
	cfg := base
	cfg.EnvironmentMode = sim.ModeV2SlowAdapt
	cfg.Flow.FundamentalRate = a.v2FundRate
	cfg.Flow.FundamentalJumpTicks = a.v2FundJump
	cfg.Flow.SlowAdaptProb = a.v2AdaptProb
	cfg.Flow.SlowAdaptMaxQty = a.v2AdaptQty
	return cfg
}

type bundleRunner struct {
	args args
	db   *store.Store
}

func (r *bundleRunner) runBundle(name string, env sim.Config) (bundleResult, error) {
	bundleRoot := filepath.Join(r.args.outputDir, name)

	scenarios := []struct {
		name      string
		imbalance float64
		pInformed float64
	}{
		{"A_baseline", 0, 0},
		{"B_buy_imbalance", 0.35, 0},
		{"C_informed_flow", 0, r.args.informedP},
	}

	var result bundleResult
	for _, sc := range scenarios {
		cfg := env
		cfg.Flow.Imbalance = sc.imbalance
		cfg.Flow.PInformed = sc.pInformed

		report, err := r.runCase(cfg, filepath.Join(bundleRoot, sc.name))
		if err != nil {
			return bundleResult{}, errors.Wrapf(err, "scenario %s", sc.name)
		}
		result.scenarios = append(result.scenarios, scenarioResult{name: sc.name, report: report})
		logs.Infof("%s/%s: final_pnl=%.4f avg_markout=%.6f", name, sc.name, report.FinalPnL, report.AvgMarkout)

		if r.db != nil {
			if err := r.db.SaveRun(name+"/"+sc.name, cfg, report); err != nil {
				return bundleResult{}, err
			}
		}
	}

	latency, err := r.runSweep(env, r.args.latencies, func(cfg *sim.Config, k int) {
		cfg.MMUpdateEveryKEvents = k
		cfg.Flow.Imbalance = 0
		cfg.Flow.PInformed = 0
	})
	if err != nil {
		return bundleResult{}, errors.Wrap(err, "latency sweep")
	}
	result.latency = latency

	toxicity, err := r.runFloatSweep(env, r.args.toxicities, func(cfg *sim.Config, p float64) {
		cfg.Flow.Imbalance = 0
		cfg.Flow.PInformed = p
	})
	if err != nil {
		return bundleResult{}, errors.Wrap(err, "toxicity sweep")
	}
	result.toxicity = toxicity

	if err := writeScenarioTable(filepath.Join(bundleRoot, "summary_table.csv"), result.scenarios); err != nil {
		return bundleResult{}, err
	}
	if err := writeSweepTable(
		filepath.Join(bundleRoot, "A_baseline", "latency_test.csv"), "k", result.latency, true,
	); err != nil {
		return bundleResult{}, err
	}
	if err := writeSweepTable(
		filepath.Join(bundleRoot, "C_informed_flow", "toxicity_sweep.csv"), "p_informed", result.toxicity, false,
	); err != nil {
		return bundleResult{}, err
	}
	return result, nil
}

// runCase runs one simulation and writes its full artifact set.
func (r *bundleRunner) runCase(cfg sim.Config, dir string) (analytics.Report, error) {
	result, report, err := simulate(cfg)
	if err != nil {
		return analytics.Report{}, err
	}

	writer, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	if err != nil {
		return analytics.Report{}, err
	}
	if err := writer.WriteRun(result, report); err != nil {
		return analytics.Report{}, err
	}
	return report, nil
}

func (r *bundleRunner) runSweep(env sim.Config, values []int, apply func(*sim.Config, int)) ([]sweepRow, error) {
	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}
	return r.runFloatSweep(env, floats, func(cfg *sim.Config, v float64) {
		apply(cfg, int(v))
	})
}

// runFloatSweep runs one simulation per value on a bounded worker pool.
// Each run owns its full simulator state, so workers share nothing. Rows
// come back in input order regardless of completion order.
func (r *bundleRunner) runFloatSweep(env sim.Config, values []float64, apply func(*sim.Config, float64)) ([]sweepRow, error) {
	rows := make([]sweepRow, len(values))
	errs := make([]error, len(values))
	sem := make(chan struct{}, r.args.workers)

	var wg sync.WaitGroup
	for i, v := range values {
		select {
		case <-sys.Shutdown():
			return nil, errors.New("sweep aborted by shutdown signal")
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, value float64) {
			defer wg.Done()
			defer func() { <-sem }()

			cfg := env
			apply(&cfg, value)
			_, report, err := simulate(cfg)
			if err != nil {
				errs[idx] = err
				return
			}
			rows[idx] = sweepRow{key: value, report: report}
		}(i, v)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func simulate(cfg sim.Config) (*sim.Result, analytics.Report, error) {
	simulator, err := sim.New(cfg)
	if err != nil {
		return nil, analytics.Report{}, err
	}
	result, err := simulator.Run()
	if err != nil {
		return nil, analytics.Report{}, err
	}
	report, err := analytics.Build(result, cfg.AdverseHorizon)
	if err != nil {
		return nil, analytics.Report{}, err
	}
	return result, report, nil
}

var compareMetrics = []struct {
	name string
	get  func(analytics.Report) float64
}{
	{"final_pnl", func(r analytics.Report) float64 { return r.FinalPnL }},
	{"final_realized_pnl", func(r analytics.Report) float64 { return r.FinalRealizedPnL }},
	{"final_unrealized_pnl", func(r analytics.Report) float64 { return r.FinalUnrealizedPnL }},
	{"avg_markout", func(r analytics.Report) float64 { return r.AvgMarkout }},
	{"avg_adverse_move", func(r analytics.Report) float64 { return r.AvgAdverseMove }},
	{"adverse_fill_ratio", func(r analytics.Report) float64 { return r.AdverseFillRatio }},
}

func writeScenarioTable(path string, scenarios []scenarioResult) error {
	header := []string{"experiment"}
	for _, m := range compareMetrics {
		header = append(header, m.name)
	}

	rows := make([][]string, 0, len(scenarios))
	for _, sc := range scenarios {
		row := []string{sc.name}
		for _, m := range compareMetrics {
			row = append(row, formatFloat(m.get(sc.report)))
		}
		rows = append(rows, row)
	}
	return recorder.WriteTable(path, header, rows)
}

func writeSweepTable(path, keyName string, rows []sweepRow, intKey bool) error {
	header := []string{keyName, "final_pnl", "avg_markout", "avg_adverse_move", "adverse_fill_ratio"}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		key := formatFloat(row.key)
		if intKey {
			key = strconv.Itoa(int(row.key))
		}
		out = append(out, []string{
			key,
			formatFloat(row.report.FinalPnL),
			formatFloat(row.report.AvgMarkout),
			formatFloat(row.report.AvgAdverseMove),
			formatFloat(row.report.AdverseFillRatio),
		})
	}
	return recorder.WriteTable(path, header, out)
}

func writeComparisons(outputDir string, v1, v2 bundleResult) error {
	header := []string{"experiment"}
	for _, m := range compareMetrics {
		header = append(header, m.name+"_v1")
	}
	for _, m := range compareMetrics {
		header = append(header, m.name+"_v2")
	}
	for _, m := range compareMetrics {
		header = append(header, "delta_"+m.name)
	}

	v2ByName := make(map[string]analytics.Report, len(v2.scenarios))
	for _, sc := range v2.scenarios {
		v2ByName[sc.name] = sc.report
	}

	var rows [][]string
	for _, sc := range v1.scenarios {
		other, ok := v2ByName[sc.name]
		if !ok {
			continue
		}
		row := []string{sc.name}
		for _, m := range compareMetrics {
			row = append(row, formatFloat(m.get(sc.report)))
		}
		for _, m := range compareMetrics {
			row = append(row, formatFloat(m.get(other)))
		}
		for _, m := range compareMetrics {
			row = append(row, formatFloat(m.get(other)-m.get(sc.report)))
		}
		rows = append(rows, row)
	}
	if err := recorder.WriteTable(filepath.Join(outputDir, "v1_vs_v2_compare.csv"), header, rows); err != nil {
		return err
	}

	if err := writeSweepComparison(
		filepath.Join(outputDir, "v1_vs_v2_latency.csv"), "k", v1.latency, v2.latency, true,
	); err != nil {
		return err
	}
	return writeSweepComparison(
		filepath.Join(outputDir, "v1_vs_v2_toxicity.csv"), "p_informed", v1.toxicity, v2.toxicity, false,
	)
}

func writeSweepComparison(path, keyName string, v1, v2 []sweepRow, intKey bool) error {
	metrics := []string{"final_pnl", "avg_markout", "avg_adverse_move", "adverse_fill_ratio"}
	header := []string{keyName}
	for _, m := range metrics {
		header = append(header, m+"_v1")
	}
	for _, m := range metrics {
		header = append(header, m+"_v2")
	}

	v2ByKey := make(map[float64]analytics.Report, len(v2))
	for _, row := range v2 {
		v2ByKey[row.key] = row.report
	}

	values := func(r analytics.Report) []string {
		return []string{
			formatFloat(r.FinalPnL),
			formatFloat(r.AvgMarkout),
			formatFloat(r.AvgAdverseMove),
			formatFloat(r.AdverseFillRatio),
		}
	}

	var rows [][]string
	for _, row := range v1 {
		other, ok := v2ByKey[row.key]
		if !ok {
			continue
		}
		key := formatFloat(row.key)
		if intKey {
			key = strconv.Itoa(int(row.key))
		}
		out := append([]string{key}, values(row.report)...)
		out = append(out, values(other)...)
		rows = append(rows, out)
	}
	return recorder.WriteTable(path, header, rows)
}

// cleanOutput removes stale bundle directories and comparison tables so a
// rerun never mixes artifacts from different parameter grids.
func cleanOutput(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	for _, name := range []string{"v1_control", "v2_realism"} {
		if err := os.RemoveAll(filepath.Join(outputDir, name)); err != nil {
			return err
		}
	}
	for _, name := range []string{"v1_vs_v2_compare.csv", "v1_vs_v2_latency.csv", "v1_vs_v2_toxicity.csv"} {
		if err := os.Remove(filepath.Join(outputDir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func printBundle(name string, result bundleResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scenarios:", name)
	for _, sc := range result.scenarios {
		fmt.Fprintf(
			&b,
			" %s(final_pnl=%.4f markout=%.6f adverse_ratio=%.2f)",
			sc.name, sc.report.FinalPnL, sc.report.AvgMarkout, sc.report.AdverseFillRatio,
		)
	}
	logs.Info(b.String())
}

func parseIntList(raw string) ([]int, error) {
	var values []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if v > 0 {
			values = append(values, v)
		}
	}
	return values, nil
}

func parseFloatList(raw string) ([]float64, error) {
	var values []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
