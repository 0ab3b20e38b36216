package once

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// ResultsFileName is the submission file name expected by the ONCE
// evaluation tooling.
const ResultsFileName = "results_once.json"

// Modality keys under which multi-branch detectors report their output.
const (
	ModalityPts = "pts_bbox"
	ModalityImg = "img_bbox"
)

// DetectionResult is one frame of raw detector output in the standard lidar
// convention (bottom-centre boxes). Labels are 1-based detector labels; the
// formatter resolves them against the class list.
type DetectionResult struct {
	Boxes  []Box
	Scores []float64
	Labels []int
}

type detectionResultJSON struct {
	Boxes  [][7]float64 `json:"boxes_3d"`
	Scores []float64    `json:"scores_3d"`
	Labels []int        `json:"labels_3d"`
}

// MarshalJSON writes boxes in the [cx cy cz l w h yaw] wire order.
func (r DetectionResult) MarshalJSON() ([]byte, error) {
	out := detectionResultJSON{Scores: r.Scores, Labels: r.Labels}
	out.Boxes = make([][7]float64, len(r.Boxes))
	for i, b := range r.Boxes {
		out.Boxes[i] = b.Array()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads boxes from the [cx cy cz l w h yaw] wire order.
func (r *DetectionResult) UnmarshalJSON(data []byte) error {
	var in detectionResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Scores = in.Scores
	r.Labels = in.Labels
	r.Boxes = make([]Box, len(in.Boxes))
	for i, a := range in.Boxes {
		r.Boxes[i] = BoxFromArray(a)
	}
	return nil
}

// FrameDetections is the per-frame detector output: either a single result
// or one result per modality branch (pts_bbox / img_bbox).
type FrameDetections struct {
	Single      *DetectionResult
	PerModality map[string]*DetectionResult
}

// UnmarshalJSON sniffs the record shape: objects carrying a modality key are
// split results, everything else is a single result.
func (f *FrameDetections) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	_, hasPts := probe[ModalityPts]
	_, hasImg := probe[ModalityImg]
	if !hasPts && !hasImg {
		var r DetectionResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		f.Single = &r
		return nil
	}

	f.PerModality = make(map[string]*DetectionResult, len(probe))
	for name, raw := range probe {
		var r DetectionResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("modality %s: %w", name, err)
		}
		f.PerModality[name] = &r
	}
	return nil
}

// SubmissionRecord is one frame of formatted predictions in ONCE submission
// format: parallel name/score arrays and boxes back in the native
// convention.
type SubmissionRecord struct {
	Names   []string     `json:"name"`
	Scores  []float64    `json:"score"`
	Boxes3D [][7]float64 `json:"boxes_3d"`
	FrameID string       `json:"frame_id"`
}

// FormatDetections converts one frame of detector output into a submission
// record: boxes standard→ONCE with yaw wrapped into [-π, π), detector labels
// resolved 1-based against classes. Frames with no detections produce empty
// arrays with the frame id still set.
func FormatDetections(det *DetectionResult, frameID string, classes []string) (SubmissionRecord, error) {
	rec := SubmissionRecord{
		Names:   []string{},
		Scores:  []float64{},
		Boxes3D: [][7]float64{},
		FrameID: frameID,
	}
	if det == nil || len(det.Boxes) == 0 {
		return rec, nil
	}
	if len(det.Scores) != len(det.Boxes) || len(det.Labels) != len(det.Boxes) {
		return rec, fmt.Errorf("frame %s: %d boxes, %d scores, %d labels", frameID,
			len(det.Boxes), len(det.Scores), len(det.Labels))
	}

	rec.Names = make([]string, len(det.Labels))
	for i, label := range det.Labels {
		idx := label - 1 // detector labels are 1-based
		if idx < 0 || idx >= len(classes) {
			return rec, fmt.Errorf("frame %s: label %d outside class range", frameID, label)
		}
		rec.Names[i] = classes[idx]
	}

	rec.Scores = append(rec.Scores, det.Scores...)
	rec.Boxes3D = make([][7]float64, len(det.Boxes))
	for i, b := range BoxesToONCE(det.Boxes) {
		b.Yaw = NormalizeYaw(b.Yaw)
		rec.Boxes3D[i] = b.Array()
	}
	return rec, nil
}

// filterByRange drops detections whose box centre falls outside limit.
// Mismatched score/label lengths are passed through so FormatDetections can
// report them.
func filterByRange(det *DetectionResult, limit [6]float64) *DetectionResult {
	if det == nil || len(det.Boxes) == 0 {
		return det
	}
	if len(det.Scores) != len(det.Boxes) || len(det.Labels) != len(det.Boxes) {
		return det
	}

	out := &DetectionResult{
		Boxes:  []Box{},
		Scores: []float64{},
		Labels: []int{},
	}
	for i, b := range det.Boxes {
		if !InBoxRange(b, limit) {
			continue
		}
		out.Boxes = append(out.Boxes, b)
		out.Scores = append(out.Scores, det.Scores[i])
		out.Labels = append(out.Labels, det.Labels[i])
	}
	return out
}

// FormatResults converts a full result set into submission records, keyed by
// modality. A plain (non-split) result set lands under the empty key. The
// results slice must cover every frame of the dataset in index order. Boxes
// whose centre falls outside the dataset's point cloud range are dropped.
func (d *Dataset) FormatResults(results []FrameDetections) (map[string][]SubmissionRecord, error) {
	if len(results) != d.Len() {
		return nil, fmt.Errorf("have %d results for %d frames", len(results), d.Len())
	}
	if d.Len() == 0 {
		return map[string][]SubmissionRecord{}, nil
	}

	if results[0].PerModality == nil {
		recs, err := d.formatModality(results, "")
		if err != nil {
			return nil, err
		}
		return map[string][]SubmissionRecord{"": recs}, nil
	}

	out := make(map[string][]SubmissionRecord, len(results[0].PerModality))
	for name := range results[0].PerModality {
		recs, err := d.formatModality(results, name)
		if err != nil {
			return nil, err
		}
		out[name] = recs
	}
	return out, nil
}

func (d *Dataset) formatModality(results []FrameDetections, modality string) ([]SubmissionRecord, error) {
	recs := make([]SubmissionRecord, 0, len(results))
	for i := range results {
		det := results[i].Single
		if modality != "" {
			det = results[i].PerModality[modality]
		}
		det = filterByRange(det, d.PointCloudRange)
		rec, err := FormatDetections(det, d.infos[i].FrameID, d.Classes)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteSubmission writes submission records as results_once.json under dir,
// creating the directory as needed, and returns the file path.
func WriteSubmission(records []SubmissionRecord, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("empty output directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, ResultsFileName)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write submission: %w", err)
	}

	log.Printf("results: wrote %d records to %s", len(records), path)
	return path, nil
}

// WriteResults formats a result set and writes one submission file per
// modality: the plain set directly under dir, split sets under per-modality
// subdirectories. Returns modality → file path.
func (d *Dataset) WriteResults(results []FrameDetections, dir string) (map[string]string, error) {
	byModality, err := d.FormatResults(results)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]string, len(byModality))
	for modality, recs := range byModality {
		outDir := dir
		if modality != "" {
			outDir = filepath.Join(dir, modality)
		}
		path, err := WriteSubmission(recs, outDir)
		if err != nil {
			return nil, err
		}
		paths[modality] = path
	}
	return paths, nil
}
