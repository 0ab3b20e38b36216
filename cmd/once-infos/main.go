// Command once-infos inspects a dataset infos file: it prints frame,
// sequence and class statistics, and can export a flat Parquet frame index
// or bird's-eye-view plots of ground-truth boxes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/banshee-data/once3d/internal/once"
	"github.com/banshee-data/once3d/internal/once/monitor"
	"github.com/banshee-data/once3d/internal/version"
)

type config struct {
	InfosFile   string
	ParquetFile string
	PlotDir     string
	PlotFrames  int
	ShowVersion bool
}

func parseFlags() *config {
	cfg := &config{}
	flag.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	flag.StringVar(&cfg.InfosFile, "infos", "", "dataset infos file (.json or .jsonl)")
	flag.StringVar(&cfg.ParquetFile, "parquet", "", "optional Parquet path for the flat frame index")
	flag.StringVar(&cfg.PlotDir, "plot-dir", "", "optional directory for ground-truth BEV plots")
	flag.IntVar(&cfg.PlotFrames, "plot-frames", 5, "number of annotated frames to plot")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.ShowVersion {
		fmt.Println("once-infos", version.String())
		return
	}
	if cfg.InfosFile == "" {
		fmt.Fprintln(os.Stderr, "usage: once-infos -infos <file> [-parquet <file>] [-plot-dir <dir>]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("once-infos: %v", err)
	}
}

func run(cfg *config) error {
	infos, err := once.LoadInfos(cfg.InfosFile)
	if err != nil {
		return err
	}

	printSummary(infos)

	if cfg.ParquetFile != "" {
		index := once.BuildIndex(infos)
		if err := once.WriteIndexParquet(index, cfg.ParquetFile); err != nil {
			return err
		}
	}

	if cfg.PlotDir != "" {
		if err := plotGroundTruth(cfg, infos); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(infos []once.FrameInfo) {
	sequences := make(map[string]int)
	classes := make(map[string]int)
	annotated := 0
	boxes := 0

	for i := range infos {
		sequences[infos[i].SequenceID]++
		if infos[i].Annos == nil {
			continue
		}
		annotated++
		boxes += len(infos[i].Annos.Boxes3D)
		for _, name := range infos[i].Annos.Names {
			classes[name]++
		}
	}

	fmt.Printf("frames:     %d (%d annotated)\n", len(infos), annotated)
	fmt.Printf("sequences:  %d\n", len(sequences))
	fmt.Printf("gt boxes:   %d\n", boxes)

	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, classes[name])
	}
}

func plotGroundTruth(cfg *config, infos []once.FrameInfo) error {
	plotter, err := monitor.NewBEVPlotter(cfg.PlotDir, once.DefaultPointCloudRange)
	if err != nil {
		return err
	}

	plotted := 0
	for i := range infos {
		if plotted >= cfg.PlotFrames {
			break
		}
		annos := infos[i].Annos
		if annos == nil || len(annos.Boxes3D) == 0 {
			continue
		}
		// Plot in the standard frame so GT and prediction plots line up.
		path, err := plotter.PlotFrame(infos[i].FrameID, once.BoxesToStandard(annos.Boxes3D))
		if err != nil {
			return err
		}
		log.Printf("plotted %s", path)
		plotted++
	}
	return nil
}
