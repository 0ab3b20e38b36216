package once

import (
	"fmt"
	"path/filepath"
)

// Pipeline is the external data-processing collaborator applied to assembled
// samples at train time. Implementations own augmentation, tensorisation and
// everything else downstream of sample assembly.
type Pipeline interface {
	Transform(s *Sample) (*Sample, error)
}

// Dataset indexes an ONCE split: per-frame records, camera calibration and,
// on annotated frames, ground truth. All accessors assemble transient
// records; the dataset itself is immutable after construction.
type Dataset struct {
	DataRoot        string
	Split           string
	PtsPrefix       string
	Classes         []string
	Cameras         []string
	PointCloudRange [6]float64
	FilterEmptyGT   bool
	TestMode        bool

	infos     []FrameInfo
	annotated []int // indices of frames carrying ground truth
}

// NewDataset loads the infos file named by cfg and builds a Dataset with the
// configured overrides applied on top of the package defaults.
func NewDataset(cfg *DatasetConfig) (*Dataset, error) {
	if cfg == nil {
		cfg = EmptyDatasetConfig()
	}
	infos, err := LoadInfos(cfg.GetInfosPath())
	if err != nil {
		return nil, err
	}
	return NewDatasetFromInfos(cfg, infos), nil
}

// NewDatasetFromInfos builds a Dataset over an already-loaded index. The
// infos slice is retained, not copied.
func NewDatasetFromInfos(cfg *DatasetConfig, infos []FrameInfo) *Dataset {
	if cfg == nil {
		cfg = EmptyDatasetConfig()
	}
	d := &Dataset{
		DataRoot:        cfg.GetDataRoot(),
		Split:           cfg.GetSplit(),
		PtsPrefix:       cfg.GetPtsPrefix(),
		Classes:         cfg.GetClasses(),
		Cameras:         cfg.GetCameras(),
		PointCloudRange: cfg.GetPointCloudRange(),
		FilterEmptyGT:   cfg.GetFilterEmptyGT(),
		TestMode:        cfg.GetTestMode(),
		infos:           infos,
	}
	for i := range infos {
		if infos[i].Annotated() {
			d.annotated = append(d.annotated, i)
		}
	}
	return d
}

// Len returns the number of indexed frames.
func (d *Dataset) Len() int { return len(d.infos) }

// AnnotatedLen returns the number of frames carrying ground truth.
func (d *Dataset) AnnotatedLen() int { return len(d.annotated) }

// Info returns the raw frame record at index.
func (d *Dataset) Info(index int) (*FrameInfo, error) {
	if index < 0 || index >= len(d.infos) {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", index, len(d.infos))
	}
	return &d.infos[index], nil
}

// SampleAt assembles the input record for one frame: the point-cloud path,
// per-camera image paths laid out as <root>/data/<sequence>/<camera>/<frame>.jpg,
// and one lidar→image projection per camera. Outside test mode the frame's
// annotation info is attached (nil when the frame is unannotated).
func (d *Dataset) SampleAt(index int) (*Sample, error) {
	info, err := d.Info(index)
	if err != nil {
		return nil, err
	}

	s := &Sample{
		SampleIdx:    info.FrameID,
		PtsFilename:  info.LidarPath,
		ImageFiles:   make([]string, 0, len(d.Cameras)),
		LidarToImage: make([][16]float64, 0, len(d.Cameras)),
	}

	for _, cam := range d.Cameras {
		calib, ok := info.Calib[cam]
		if !ok {
			return nil, fmt.Errorf("frame %s: no calibration for %s", info.FrameID, cam)
		}
		proj, err := LidarToImageMatrix(calib)
		if err != nil {
			return nil, fmt.Errorf("frame %s %s: %w", info.FrameID, cam, err)
		}
		s.ImageFiles = append(s.ImageFiles,
			filepath.Join(d.DataRoot, "data", info.SequenceID, cam, info.FrameID+".jpg"))
		s.LidarToImage = append(s.LidarToImage, proj)
	}

	if !d.TestMode {
		s.AnnInfo = d.AnnotationsAt(index)
	}

	return s, nil
}

// AnnotationsAt returns the train-time ground truth for one frame with boxes
// converted to the standard lidar convention and names resolved to labels.
// Returns nil when the frame is unannotated or the index is out of range.
func (d *Dataset) AnnotationsAt(index int) *AnnotationInfo {
	if index < 0 || index >= len(d.infos) {
		return nil
	}
	annos := d.infos[index].Annos
	if annos == nil {
		return nil
	}

	labels := make([]int, len(annos.Names))
	for i, name := range annos.Names {
		labels[i] = LabelForName(name, d.Classes)
	}
	labels3D := make([]int, len(labels))
	copy(labels3D, labels)

	return &AnnotationInfo{
		Boxes3D:  BoxesToStandard(annos.Boxes3D),
		Labels3D: labels3D,
		Labels:   labels,
		Names:    annos.Names,
	}
}

// PrepareTrainSample assembles the sample at index and runs it through the
// pipeline. Returns (nil, nil) when the sample should be skipped: the frame
// has no ground truth, or empty-GT filtering is on and every label is -1.
func (d *Dataset) PrepareTrainSample(index int, p Pipeline) (*Sample, error) {
	s, err := d.SampleAt(index)
	if err != nil {
		return nil, err
	}
	if s.AnnInfo == nil {
		return nil, nil
	}

	if p != nil {
		s, err = p.Transform(s)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	if d.FilterEmptyGT && !hasValidLabel(s) {
		return nil, nil
	}
	return s, nil
}

func hasValidLabel(s *Sample) bool {
	if s == nil || s.AnnInfo == nil {
		return false
	}
	for _, l := range s.AnnInfo.Labels3D {
		if l != -1 {
			return true
		}
	}
	return false
}

// GroundTruth returns the native-convention annotations of every frame in
// index order, with nil entries for unannotated frames. This is the ground
// truth slice handed to the evaluation collaborator.
func (d *Dataset) GroundTruth() []*Annotations {
	gt := make([]*Annotations, len(d.infos))
	for i := range d.infos {
		gt[i] = d.infos[i].Annos
	}
	return gt
}
