package main

import (
	"flag"
	"log"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/analytics"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/sim"
	"main/internal/store"
)

func main() {
	configPath := flag.String("config", "", "JSON config file (default: built-in baseline)")
	outputDir := flag.String("output-dir", "outputs/base", "Output directory for run artifacts")
	seed := flag.Int64("seed", -1, "Seed override (-1: keep config seed)")
	postgresDSN := flag.String("postgres-dsn", "", "Optional PostgreSQL DSN for run summary persistence")
	experiment := flag.String("experiment", "single_run", "Experiment label for persisted summaries")
	pyroscopeAddr := flag.String("pyroscope", "", "Optional Pyroscope server address")
	flag.Parse()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "lobsim",
			ServerAddress:   *pyroscopeAddr,
			Tags: map[string]string{
				"env": "local",
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	cfg, err := ops.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *seed >= 0 {
		cfg.Seed = *seed
	}

	simulator, err := sim.New(cfg)
	if err != nil {
		log.Fatalf("simulator init failed: %v", err)
	}

	logs.Infof("running simulation: mode=%s seed=%d end_time=%.1f", cfg.EnvironmentMode, cfg.Seed, cfg.EndTime)
	result, err := simulator.Run()
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	report, err := analytics.Build(result, cfg.AdverseHorizon)
	if err != nil {
		log.Fatalf("metrics build failed: %v", err)
	}

	writer, err := recorder.NewWriter(recorder.DefaultConfig(*outputDir))
	if err != nil {
		log.Fatalf("recorder init failed: %v", err)
	}
	if err := writer.WriteRun(result, report); err != nil {
		log.Fatalf("artifact write failed: %v", err)
	}

	if *postgresDSN != "" {
		db, err := store.Open(*postgresDSN)
		if err != nil {
			log.Fatalf("store open failed: %v", err)
		}
		defer func() {
			_ = db.Close()
		}()
		if err := db.SaveRun(*experiment, cfg, report); err != nil {
			log.Fatalf("store save failed: %v", err)
		}
		logs.Infof("saved run summary to postgres: experiment=%s", *experiment)
	}

	logs.Infof("saved outputs to %s", writer.Dir())
	logs.Infof(
		"final summary: trades=%d final_pnl=%.4f realized=%.4f unrealized=%.4f final_inventory=%.0f avg_markout=%.6f avg_adverse_move=%.6f adverse_fill_ratio=%.2f%%",
		int(report.Trades),
		report.FinalPnL,
		report.FinalRealizedPnL,
		report.FinalUnrealizedPnL,
		report.FinalInventory,
		report.AvgMarkout,
		report.AvgAdverseMove,
		report.AdverseFillRatio*100,
	)
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
