package once

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func testCalib() map[string]CameraCalibration {
	return map[string]CameraCalibration{
		"cam01": identityCalib(),
	}
}

// testInfos builds three frames: one with mixed ground truth, one whose only
// box is an unknown class, and one unannotated.
func testInfos() []FrameInfo {
	return []FrameInfo{
		{
			FrameID:    "frame-a",
			SequenceID: "000027",
			LidarPath:  "data/000027/lidar_roof/frame-a.bin",
			Calib:      testCalib(),
			Annos: &Annotations{
				Names: []string{"Car", "UnknownThing"},
				Boxes3D: []Box{
					{X: 1, Y: 2, Z: 0.5, Length: 4, Width: 2, Height: 1.5, Yaw: 0},
					{X: 5, Y: 5, Z: 0.5, Length: 1, Width: 1, Height: 1, Yaw: 1},
				},
			},
		},
		{
			FrameID:    "frame-b",
			SequenceID: "000027",
			LidarPath:  "data/000027/lidar_roof/frame-b.bin",
			Calib:      testCalib(),
			Annos: &Annotations{
				Names:   []string{"UnknownThing"},
				Boxes3D: []Box{{X: 1, Y: 1, Z: 1, Length: 1, Width: 1, Height: 1}},
			},
		},
		{
			FrameID:    "frame-c",
			SequenceID: "000027",
			LidarPath:  "data/000027/lidar_roof/frame-c.bin",
			Calib:      testCalib(),
		},
	}
}

func testDatasetConfig() *DatasetConfig {
	root := "/data/once"
	return &DatasetConfig{
		DataRoot: &root,
		Cameras:  []string{"cam01"},
	}
}

func TestDatasetCounts(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3", d.Len())
	}
	if d.AnnotatedLen() != 2 {
		t.Errorf("AnnotatedLen = %d, want 2", d.AnnotatedLen())
	}
}

func TestSampleAt(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())

	s, err := d.SampleAt(0)
	if err != nil {
		t.Fatalf("SampleAt failed: %v", err)
	}

	if s.SampleIdx != "frame-a" {
		t.Errorf("SampleIdx = %q", s.SampleIdx)
	}
	if s.PtsFilename != "data/000027/lidar_roof/frame-a.bin" {
		t.Errorf("PtsFilename = %q", s.PtsFilename)
	}

	wantImg := filepath.Join("/data/once", "data", "000027", "cam01", "frame-a.jpg")
	if len(s.ImageFiles) != 1 || s.ImageFiles[0] != wantImg {
		t.Errorf("ImageFiles = %v, want [%s]", s.ImageFiles, wantImg)
	}
	if len(s.LidarToImage) != 1 {
		t.Fatalf("LidarToImage has %d entries, want 1", len(s.LidarToImage))
	}

	if s.AnnInfo == nil {
		t.Fatal("expected annotation info outside test mode")
	}
	if got := s.AnnInfo.Labels; len(got) != 2 || got[0] != 0 || got[1] != -1 {
		t.Errorf("Labels = %v, want [0 -1]", got)
	}
}

func TestSampleAtTestMode(t *testing.T) {
	cfg := testDatasetConfig()
	testMode := true
	cfg.TestMode = &testMode

	d := NewDatasetFromInfos(cfg, testInfos())
	s, err := d.SampleAt(0)
	if err != nil {
		t.Fatalf("SampleAt failed: %v", err)
	}
	if s.AnnInfo != nil {
		t.Error("test mode sample should not carry annotation info")
	}
}

func TestSampleAtMissingCamera(t *testing.T) {
	cfg := testDatasetConfig()
	cfg.Cameras = []string{"cam01", "cam03"}

	d := NewDatasetFromInfos(cfg, testInfos())
	if _, err := d.SampleAt(0); err == nil {
		t.Fatal("expected error for missing cam03 calibration")
	}
}

func TestSampleAtOutOfRange(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())
	if _, err := d.SampleAt(3); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	if _, err := d.SampleAt(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
}

func TestAnnotationsAt(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())

	ann := d.AnnotationsAt(0)
	if ann == nil {
		t.Fatal("expected annotations for frame 0")
	}

	// ONCE box (1,2,0.5) lands at (-2,1,0.5) in the standard frame with yaw
	// shifted by +π/2.
	b := ann.Boxes3D[0]
	if math.Abs(b.X+2) > floatTol || math.Abs(b.Y-1) > floatTol || math.Abs(b.Z-0.5) > floatTol {
		t.Errorf("converted centre = (%v,%v,%v), want (-2,1,0.5)", b.X, b.Y, b.Z)
	}
	if math.Abs(b.Yaw-math.Pi/2) > floatTol {
		t.Errorf("converted yaw = %v, want π/2", b.Yaw)
	}

	if ann.Names[1] != "UnknownThing" || ann.Labels[1] != -1 {
		t.Errorf("unknown class should keep name and map to label -1: %v %v", ann.Names, ann.Labels)
	}
	if len(ann.Labels3D) != len(ann.Labels) {
		t.Errorf("Labels3D length %d != Labels length %d", len(ann.Labels3D), len(ann.Labels))
	}

	if d.AnnotationsAt(2) != nil {
		t.Error("unannotated frame should return nil")
	}
	if d.AnnotationsAt(99) != nil {
		t.Error("out-of-range index should return nil")
	}
}

type recordingPipeline struct {
	calls int
	err   error
}

func (p *recordingPipeline) Transform(s *Sample) (*Sample, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return s, nil
}

func TestPrepareTrainSample(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())
	p := &recordingPipeline{}

	s, err := d.PrepareTrainSample(0, p)
	if err != nil {
		t.Fatalf("PrepareTrainSample failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a sample for annotated frame with valid labels")
	}
	if p.calls != 1 {
		t.Errorf("pipeline called %d times, want 1", p.calls)
	}
}

func TestPrepareTrainSampleSkipsEmptyGT(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())

	// Frame 1's only box is an unknown class: every label is -1.
	s, err := d.PrepareTrainSample(1, &recordingPipeline{})
	if err != nil {
		t.Fatalf("PrepareTrainSample failed: %v", err)
	}
	if s != nil {
		t.Error("expected skip for frame with no valid labels")
	}

	// Frame 2 has no ground truth at all.
	s, err = d.PrepareTrainSample(2, &recordingPipeline{})
	if err != nil {
		t.Fatalf("PrepareTrainSample failed: %v", err)
	}
	if s != nil {
		t.Error("expected skip for unannotated frame")
	}
}

func TestPrepareTrainSampleKeepsEmptyGTWhenFilterOff(t *testing.T) {
	cfg := testDatasetConfig()
	filter := false
	cfg.FilterEmptyGT = &filter

	d := NewDatasetFromInfos(cfg, testInfos())
	s, err := d.PrepareTrainSample(1, &recordingPipeline{})
	if err != nil {
		t.Fatalf("PrepareTrainSample failed: %v", err)
	}
	if s == nil {
		t.Error("filter off: sample with only -1 labels should be kept")
	}
}

func TestPrepareTrainSamplePipelineError(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())
	wantErr := errors.New("augmentation exploded")

	_, err := d.PrepareTrainSample(0, &recordingPipeline{err: wantErr})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped pipeline error, got %v", err)
	}
}

func TestGroundTruth(t *testing.T) {
	d := NewDatasetFromInfos(testDatasetConfig(), testInfos())
	gt := d.GroundTruth()
	if len(gt) != 3 {
		t.Fatalf("GroundTruth has %d entries, want 3", len(gt))
	}
	if gt[0] == nil || gt[1] == nil || gt[2] != nil {
		t.Errorf("unexpected nil pattern: %v %v %v", gt[0] != nil, gt[1] != nil, gt[2] != nil)
	}
}
