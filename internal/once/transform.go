package once

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ONCE's native lidar frame is x=left, y=back, z=up with boxes centred on
// the cube; the standard lidar frame is x=front, y=left, z=up with boxes
// centred on the bottom face. The two rotations below map centres between
// the frames and are exact inverses of one another, as are the ±π/2 yaw
// offsets applied alongside them.
var (
	// onceToStandard rotates an ONCE-native centre into the standard frame.
	onceToStandard = [9]float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	}

	// standardToOnce rotates a standard-frame centre back into ONCE's frame.
	standardToOnce = [9]float64{
		0, 1, 0,
		-1, 0, 0,
		0, 0, 1,
	}
)

// yawOffset is added to ONCE yaw angles when converting to the standard
// frame and subtracted on the way back.
const yawOffset = math.Pi / 2

// rotate3 applies a row-major 3x3 matrix to (x, y, z).
func rotate3(m [9]float64, x, y, z float64) (float64, float64, float64) {
	return m[0]*x + m[1]*y + m[2]*z,
		m[3]*x + m[4]*y + m[5]*z,
		m[6]*x + m[7]*y + m[8]*z
}

// BoxToStandard converts a ground-truth box from ONCE's native convention to
// the standard lidar convention: centre rotated by onceToStandard, yaw
// shifted by +π/2. The vertical origin is left at the gravity centre; the
// consuming box representation owns that convention change.
func BoxToStandard(b Box) Box {
	x, y, z := rotate3(onceToStandard, b.X, b.Y, b.Z)
	return Box{
		X: x, Y: y, Z: z,
		Length: b.Length, Width: b.Width, Height: b.Height,
		Yaw: b.Yaw + yawOffset,
	}
}

// BoxToONCE converts a predicted box from the standard lidar convention back
// to ONCE's native convention: centre rotated by standardToOnce, vertical
// origin lifted from the bottom face to the gravity centre (z += h/2), yaw
// shifted by -π/2. This is the exact inverse of BoxToStandard up to the
// bottom-centre origin shift, which only predictions carry.
func BoxToONCE(b Box) Box {
	x, y, z := rotate3(standardToOnce, b.X, b.Y, b.Z)
	return Box{
		X: x, Y: y, Z: z + b.Height*0.5,
		Length: b.Length, Width: b.Width, Height: b.Height,
		Yaw: b.Yaw - yawOffset,
	}
}

// BoxesToStandard converts a slice of ONCE-native boxes without mutating the
// input.
func BoxesToStandard(boxes []Box) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = BoxToStandard(b)
	}
	return out
}

// BoxesToONCE converts a slice of standard-frame predicted boxes without
// mutating the input.
func BoxesToONCE(boxes []Box) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = BoxToONCE(b)
	}
	return out
}

// NormalizeYaw wraps an angle into [-π, π).
func NormalizeYaw(yaw float64) float64 {
	for yaw >= math.Pi {
		yaw -= 2 * math.Pi
	}
	for yaw < -math.Pi {
		yaw += 2 * math.Pi
	}
	return yaw
}

// LidarToImageMatrix computes the 4x4 lidar→image projection for one camera:
// the intrinsic matrix padded to 4x4, multiplied by the transpose of the
// inverted camera→lidar extrinsic. The inversion is delegated to gonum.
func LidarToImageMatrix(calib CameraCalibration) ([16]float64, error) {
	var out [16]float64

	camToVelo := mat.NewDense(4, 4, calib.CamToVelo[:])
	var lidarToCam mat.Dense
	if err := lidarToCam.Inverse(camToVelo); err != nil {
		return out, fmt.Errorf("invert cam_to_velo: %w", err)
	}

	// Pad the 3x3 intrinsic into the upper-left of a 4x4 identity.
	viewpad := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		viewpad.Set(i, i, 1)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			viewpad.Set(r, c, calib.Intrinsic[r*3+c])
		}
	}

	var proj mat.Dense
	proj.Mul(viewpad, lidarToCam.T())

	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = proj.At(r, c)
		}
	}
	return out, nil
}

// InBoxRange reports whether a standard-frame box centre falls inside the
// [xmin ymin zmin xmax ymax zmax] limit range.
func InBoxRange(b Box, limit [6]float64) bool {
	return b.X >= limit[0] && b.X <= limit[3] &&
		b.Y >= limit[1] && b.Y <= limit[4] &&
		b.Z >= limit[2] && b.Z <= limit[5]
}
