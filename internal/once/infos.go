package once

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Wire records mirror the field names of the ONCE devkit annotation files.
// Matrices arrive row-nested and are flattened into the row-major arrays the
// rest of the package uses.

type frameRecord struct {
	FrameID    string                 `json:"frame_id"`
	SequenceID string                 `json:"sequence_id"`
	Timestamp  int64                  `json:"timestamp,omitempty"`
	LidarPath  string                 `json:"lidar_path"`
	Calib      map[string]calibRecord `json:"calib"`
	Annos      *annosRecord           `json:"annos,omitempty"`
}

type calibRecord struct {
	CamToVelo  [][]float64 `json:"cam_to_velo"`
	Intrinsic  [][]float64 `json:"cam_intrinsic"`
	Distortion []float64   `json:"distortion,omitempty"`
}

type annosRecord struct {
	Names   []string    `json:"name"`
	Boxes3D [][]float64 `json:"boxes_3d"`
	Boxes2D [][]float64 `json:"boxes_2d,omitempty"`
}

// LoadInfos reads the dataset index from a .json (single array) or .jsonl
// (one record per line) infos file.
func LoadInfos(path string) ([]FrameInfo, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return loadInfosJSON(path)
	case ".jsonl":
		return loadInfosJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported infos format %q (supported: .json, .jsonl)", ext)
	}
}

func loadInfosJSON(path string) ([]FrameInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read infos file: %w", err)
	}

	var records []frameRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse infos JSON: %w", err)
	}

	return decodeFrameRecords(records, path)
}

func loadInfosJSONL(path string) ([]FrameInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open infos file: %w", err)
	}
	defer f.Close()

	var records []frameRecord
	scanner := bufio.NewScanner(f)

	// Annotated frames can carry hundreds of boxes per line.
	const maxLine = 16 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec frameRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse infos line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read infos file: %w", err)
	}

	return decodeFrameRecords(records, path)
}

func decodeFrameRecords(records []frameRecord, path string) ([]FrameInfo, error) {
	infos := make([]FrameInfo, 0, len(records))
	annotated := 0
	for i, rec := range records {
		info, err := decodeFrameRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("infos record %d (frame %q): %w", i, rec.FrameID, err)
		}
		if info.Annotated() {
			annotated++
		}
		infos = append(infos, info)
	}
	log.Printf("infos: loaded %d frames (%d annotated) from %s", len(infos), annotated, path)
	return infos, nil
}

func decodeFrameRecord(rec frameRecord) (FrameInfo, error) {
	if rec.FrameID == "" {
		return FrameInfo{}, fmt.Errorf("missing frame_id")
	}

	info := FrameInfo{
		FrameID:    rec.FrameID,
		SequenceID: rec.SequenceID,
		Timestamp:  rec.Timestamp,
		LidarPath:  rec.LidarPath,
	}

	if len(rec.Calib) > 0 {
		info.Calib = make(map[string]CameraCalibration, len(rec.Calib))
		for cam, c := range rec.Calib {
			calib, err := decodeCalibRecord(c)
			if err != nil {
				return FrameInfo{}, fmt.Errorf("calib %s: %w", cam, err)
			}
			info.Calib[cam] = calib
		}
	}

	if rec.Annos != nil {
		annos, err := decodeAnnosRecord(*rec.Annos)
		if err != nil {
			return FrameInfo{}, err
		}
		info.Annos = annos
	}

	return info, nil
}

func decodeCalibRecord(c calibRecord) (CameraCalibration, error) {
	var calib CameraCalibration

	camToVelo, err := flattenMatrix(c.CamToVelo, 4, 4)
	if err != nil {
		return calib, fmt.Errorf("cam_to_velo: %w", err)
	}
	copy(calib.CamToVelo[:], camToVelo)

	intrinsic, err := flattenMatrix(c.Intrinsic, 3, 3)
	if err != nil {
		return calib, fmt.Errorf("cam_intrinsic: %w", err)
	}
	copy(calib.Intrinsic[:], intrinsic)

	calib.Distortion = c.Distortion
	return calib, nil
}

func decodeAnnosRecord(a annosRecord) (*Annotations, error) {
	if len(a.Names) != len(a.Boxes3D) {
		return nil, fmt.Errorf("annos: %d names but %d boxes_3d", len(a.Names), len(a.Boxes3D))
	}

	annos := &Annotations{
		Names:   a.Names,
		Boxes3D: make([]Box, len(a.Boxes3D)),
	}
	for i, raw := range a.Boxes3D {
		if len(raw) != 7 {
			return nil, fmt.Errorf("annos: boxes_3d[%d] has %d values, want 7", i, len(raw))
		}
		var arr [7]float64
		copy(arr[:], raw)
		annos.Boxes3D[i] = BoxFromArray(arr)
	}

	if len(a.Boxes2D) > 0 {
		annos.Boxes2D = make([][4]float64, len(a.Boxes2D))
		for i, raw := range a.Boxes2D {
			if len(raw) != 4 {
				return nil, fmt.Errorf("annos: boxes_2d[%d] has %d values, want 4", i, len(raw))
			}
			copy(annos.Boxes2D[i][:], raw)
		}
	}

	return annos, nil
}

func flattenMatrix(rows [][]float64, wantRows, wantCols int) ([]float64, error) {
	if len(rows) != wantRows {
		return nil, fmt.Errorf("have %d rows, want %d", len(rows), wantRows)
	}
	flat := make([]float64, 0, wantRows*wantCols)
	for i, row := range rows {
		if len(row) != wantCols {
			return nil, fmt.Errorf("row %d has %d cols, want %d", i, len(row), wantCols)
		}
		flat = append(flat, row...)
	}
	return flat, nil
}
