// Command once-report renders evaluation metrics as a standalone HTML bar
// chart. Metrics come either from a recorded run in the sqlite database or
// from a flat metrics JSON file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/once3d/internal/db"
	"github.com/banshee-data/once3d/internal/once"
	"github.com/banshee-data/once3d/internal/once/monitor"
	"github.com/banshee-data/once3d/internal/version"
)

type config struct {
	DBPath      string
	RunID       string
	MetricsFile string
	OutputFile  string
	Title       string
	ShowVersion bool
}

func parseFlags() *config {
	cfg := &config{}
	flag.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	flag.StringVar(&cfg.DBPath, "db", "", "sqlite database holding recorded runs")
	flag.StringVar(&cfg.RunID, "run", "", "run id to report (default: newest run with metrics)")
	flag.StringVar(&cfg.MetricsFile, "metrics", "", "flat metrics JSON file (alternative to -db)")
	flag.StringVar(&cfg.OutputFile, "out", "report.html", "output HTML file")
	flag.StringVar(&cfg.Title, "title", "evaluation metrics", "report title")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.ShowVersion {
		fmt.Println("once-report", version.String())
		return
	}
	if cfg.DBPath == "" && cfg.MetricsFile == "" {
		fmt.Fprintln(os.Stderr, "usage: once-report (-db <file> [-run <id>] | -metrics <file>) [-out <file>]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("once-report: %v", err)
	}
}

func run(cfg *config) error {
	metrics, err := loadMetrics(cfg)
	if err != nil {
		return err
	}
	if err := monitor.WriteMetricsReport(metrics, cfg.Title, cfg.OutputFile); err != nil {
		return err
	}
	log.Printf("report: wrote %d metrics to %s", len(metrics), cfg.OutputFile)
	return nil
}

func loadMetrics(cfg *config) (map[string]float64, error) {
	if cfg.MetricsFile != "" {
		data, err := os.ReadFile(cfg.MetricsFile)
		if err != nil {
			return nil, fmt.Errorf("read metrics file: %w", err)
		}
		var metrics map[string]float64
		if err := json.Unmarshal(data, &metrics); err != nil {
			return nil, fmt.Errorf("parse metrics JSON: %w", err)
		}
		return metrics, nil
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	store := once.NewResultStore(database.DB)
	if cfg.RunID != "" {
		run, err := store.GetRun(cfg.RunID)
		if err != nil {
			return nil, err
		}
		if len(run.Metrics) == 0 {
			return nil, fmt.Errorf("run %s has no metrics", run.RunID)
		}
		return run.Metrics, nil
	}

	runs, err := store.ListRuns(50)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if len(run.Metrics) > 0 {
			log.Printf("report: using run %s (%s)", run.RunID, run.Kind)
			return run.Metrics, nil
		}
	}
	return nil, fmt.Errorf("no runs with metrics found")
}
