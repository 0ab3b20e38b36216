// Package once adapts the ONCE autonomous-driving dataset to a generic
// 3D object-detection training and evaluation workflow. It maps on-disk
// per-frame records into an in-memory sample schema, converts 7-DOF boxes
// between ONCE's native lidar convention and the standard lidar convention,
// and formats detector output back into ONCE submission records.
//
// Pipeline execution, box geometry beyond the fixed coordinate conversions,
// and metric computation are owned by external collaborators; this package
// only wires inputs and outputs to them.
package once

// ClassNames lists the detection classes in label order. Label values are
// indices into this slice; names not present map to label -1.
//
// "Pedestrain" matches the spelling used in ONCE annotation files.
var ClassNames = []string{"Car", "Bus", "Truck", "Pedestrain", "Cyclist"}

// CameraList enumerates the seven cameras of the ONCE rig in the order
// their projections appear in assembled samples.
var CameraList = []string{"cam01", "cam03", "cam05", "cam06", "cam07", "cam08", "cam09"}

// DefaultPointCloudRange is the default [xmin ymin zmin xmax ymax zmax]
// range (metres, standard lidar frame) used to filter predicted boxes.
var DefaultPointCloudRange = [6]float64{0, -40, -3, 70.4, 40, 0}

// Box is a 7-DOF 3D bounding box: centre position, extents and yaw around Z.
// The coordinate convention (ONCE-native vs standard lidar) and the vertical
// origin (gravity centre vs bottom centre) depend on where the box came from;
// conversions between the two live in transform.go.
type Box struct {
	X      float64
	Y      float64
	Z      float64
	Length float64
	Width  float64
	Height float64
	Yaw    float64
}

// Array returns the box as [cx cy cz l w h yaw], the order used by ONCE
// annotation and submission files.
func (b Box) Array() [7]float64 {
	return [7]float64{b.X, b.Y, b.Z, b.Length, b.Width, b.Height, b.Yaw}
}

// BoxFromArray builds a Box from the [cx cy cz l w h yaw] wire order.
func BoxFromArray(a [7]float64) Box {
	return Box{X: a[0], Y: a[1], Z: a[2], Length: a[3], Width: a[4], Height: a[5], Yaw: a[6]}
}

// CameraCalibration holds the extrinsic and intrinsic calibration for one
// camera. CamToVelo is the 4x4 camera→lidar rigid transform (row-major);
// Intrinsic is the 3x3 projection matrix (row-major). Distortion is carried
// through from the annotation files but not used by this package.
type CameraCalibration struct {
	CamToVelo  [16]float64
	Intrinsic  [9]float64
	Distortion []float64
}

// Annotations holds the ground truth for one frame: class names and 3D boxes
// in ONCE-native convention (gravity-centre origin), plus optional 2D boxes.
type Annotations struct {
	Names   []string
	Boxes3D []Box
	Boxes2D [][4]float64
}

// FrameInfo is one entry of the dataset index: identifiers, the point-cloud
// path, per-camera calibration and, when the frame is annotated, its ground
// truth.
type FrameInfo struct {
	FrameID    string
	SequenceID string
	Timestamp  int64
	LidarPath  string
	Calib      map[string]CameraCalibration
	Annos      *Annotations
}

// Annotated reports whether the frame carries ground truth.
func (f *FrameInfo) Annotated() bool { return f.Annos != nil }

// AnnotationInfo is the train-time view of a frame's ground truth with boxes
// already converted to the standard lidar convention and names resolved to
// labels. Labels3D mirrors Labels; the original keeps both for the 2D and 3D
// heads of multi-task detectors.
type AnnotationInfo struct {
	Boxes3D  []Box
	Labels3D []int
	Labels   []int
	Names    []string
}

// Sample is the assembled per-index input record handed to the data pipeline.
// LidarToImage holds one 4x4 row-major lidar→image projection per entry of
// ImageFiles, in camera-list order.
type Sample struct {
	SampleIdx    string
	PtsFilename  string
	ImageFiles   []string
	LidarToImage [][16]float64
	AnnInfo      *AnnotationInfo
}

// LabelForName maps a class name to its label index, or -1 when the name is
// not in classes.
func LabelForName(name string, classes []string) int {
	for i, c := range classes {
		if c == name {
			return i
		}
	}
	return -1
}
