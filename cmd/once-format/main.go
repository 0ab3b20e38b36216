// Command once-format converts raw detector output into ONCE submission
// files (results_once.json), optionally recording the run in a sqlite
// database and rendering bird's-eye-view plots of the predictions.
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
	InfosFile   string
	ResultsFile string
	OutputDir   string
	ConfigFile  string
	DataRoot    string
	Split       string
	DBPath      string
	PlotDir     string
	PlotFrames  int
	ShowVersion bool
}

func parseFlags() *config {
	cfg := &config{}
	flag.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	flag.StringVar(&cfg.InfosFile, "infos", "", "dataset infos file (.json or .jsonl)")
	flag.StringVar(&cfg.ResultsFile, "results", "", "raw detector results JSON file")
	flag.StringVar(&cfg.OutputDir, "out", "", "output directory for submission files")
	flag.StringVar(&cfg.ConfigFile, "config", "", "optional dataset config JSON file")
	flag.StringVar(&cfg.DataRoot, "data-root", "", "dataset root directory (overrides config)")
	flag.StringVar(&cfg.Split, "split", "", "dataset split (overrides config)")
	flag.StringVar(&cfg.DBPath, "db", "", "optional sqlite database to record the run in")
	flag.StringVar(&cfg.PlotDir, "plot-dir", "", "optional directory for BEV plots of predictions")
	flag.IntVar(&cfg.PlotFrames, "plot-frames", 5, "number of frames to plot")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.ShowVersion {
		fmt.Println("once-format", version.String())
		return
	}
	if cfg.InfosFile == "" || cfg.ResultsFile == "" || cfg.OutputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: once-format -infos <file> -results <file> -out <dir> [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("once-format: %v", err)
	}
}

func run(cfg *config) error {
	dsCfg := once.EmptyDatasetConfig()
	if cfg.ConfigFile != "" {
		loaded, err := once.LoadDatasetConfig(cfg.ConfigFile)
		if err != nil {
			return err
		}
		dsCfg = loaded
	}
	dsCfg.InfosPath = &cfg.InfosFile
	if cfg.DataRoot != "" {
		dsCfg.DataRoot = &cfg.DataRoot
	}
	if cfg.Split != "" {
		dsCfg.Split = &cfg.Split
	}

	dataset, err := once.NewDataset(dsCfg)
	if err != nil {
		return err
	}

	results, err := loadResults(cfg.ResultsFile)
	if err != nil {
		return err
	}

	paths, err := dataset.WriteResults(results, cfg.OutputDir)
	if err != nil {
		return err
	}
	for modality, path := range paths {
		if modality == "" {
			log.Printf("formatted results: %s", path)
		} else {
			log.Printf("formatted %s results: %s", modality, path)
		}
	}

	if cfg.DBPath != "" {
		if err := recordRun(cfg, dataset, results); err != nil {
			return err
		}
	}

	if cfg.PlotDir != "" {
		if err := plotPredictions(cfg, dataset, results); err != nil {
			return err
		}
	}
	return nil
}

func loadResults(path string) ([]once.FrameDetections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var results []once.FrameDetections
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse results JSON: %w", err)
	}
	return results, nil
}

func recordRun(cfg *config, dataset *once.Dataset, results []once.FrameDetections) error {
	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	store := once.NewResultStore(database.DB)
	run := &once.Run{
		Kind:       once.RunKindFormat,
		Split:      dataset.Split,
		InfosPath:  cfg.InfosFile,
		OutputDir:  cfg.OutputDir,
		FrameCount: dataset.Len(),
	}
	if err := store.InsertRun(run); err != nil {
		return err
	}

	byModality, err := dataset.FormatResults(results)
	if err != nil {
		return err
	}
	for modality, records := range byModality {
		if err := store.RecordPredictions(run.RunID, modality, records); err != nil {
			return err
		}
	}

	log.Printf("recorded run %s (%d frames)", run.RunID, run.FrameCount)
	return nil
}

func plotPredictions(cfg *config, dataset *once.Dataset, results []once.FrameDetections) error {
	plotter, err := monitor.NewBEVPlotter(cfg.PlotDir, dataset.PointCloudRange)
	if err != nil {
		return err
	}

	plotted := 0
	for i := range results {
		if plotted >= cfg.PlotFrames {
			break
		}
		det := results[i].Single
		if det == nil {
			det = results[i].PerModality[once.ModalityPts]
		}
		if det == nil || len(det.Boxes) == 0 {
			continue
		}
		info, err := dataset.Info(i)
		if err != nil {
			return err
		}
		path, err := plotter.PlotFrame(info.FrameID, det.Boxes)
		if err != nil {
			return err
		}
		log.Printf("plotted %s", path)
		plotted++
	}
	return nil
}
