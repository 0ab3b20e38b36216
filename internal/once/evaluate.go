package once

import (
	"fmt"
	"log"
	"math"
	"sort"
)

// Evaluator is the external metric collaborator. It owns the mAP /
// precision-recall computation; this package only feeds it ground truth and
// formatted predictions and republishes its output.
type Evaluator interface {
	// Evaluate scores predictions against ground truth and returns a
	// printable summary plus a metric-name → value mapping. The gt slice is
	// index-aligned with preds and carries nil entries for unannotated
	// frames.
	Evaluate(gt []*Annotations, preds []SubmissionRecord, classes []string) (summary string, metrics map[string]float64, err error)
}

// Evaluate formats a result set and runs the evaluator over each modality,
// flattening the output into a single metric map. Split results get
// "<modality>/<metric>" keys; metric values are rounded to 4 decimals.
func (d *Dataset) Evaluate(results []FrameDetections, ev Evaluator) (map[string]float64, error) {
	if ev == nil {
		return nil, fmt.Errorf("no evaluator configured")
	}

	byModality, err := d.FormatResults(results)
	if err != nil {
		return nil, err
	}
	gt := d.GroundTruth()

	out := make(map[string]float64)
	for _, modality := range sortedKeys(byModality) {
		summary, metrics, err := ev.Evaluate(gt, byModality[modality], d.Classes)
		if err != nil {
			if modality == "" {
				return nil, fmt.Errorf("evaluate: %w", err)
			}
			return nil, fmt.Errorf("evaluate %s: %w", modality, err)
		}

		for name, value := range metrics {
			key := name
			if modality != "" {
				key = modality + "/" + name
			}
			out[key] = round4(value)
		}

		if modality == "" {
			log.Printf("eval:\n%s", summary)
		} else {
			log.Printf("eval: results of %s:\n%s", modality, summary)
		}
	}
	return out, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func sortedKeys(m map[string][]SubmissionRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
