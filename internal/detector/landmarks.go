// Package detector provides hand landmark detection for the gesture source.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Fingertips are the four non-thumb fingertip landmarks used for fist detection.
var Fingertips = [4]int{IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D is a landmark position in normalized image coordinates:
// X and Y in [0, 1] across the frame, Z relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// planarDistance is the distance between a and b in the image plane; depth is ignored.
func planarDistance(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// MeanTipDistance returns the average planar distance from the wrist to the
// four non-thumb fingertips. A nil hand yields 0.
func (h *HandLandmarks) MeanTipDistance() float64 {
	if h == nil {
		return 0
	}

	wrist := h.Points[Wrist]
	var sum float64
	for _, idx := range Fingertips {
		sum += planarDistance(h.Points[idx], wrist)
	}
	return sum / float64(len(Fingertips))
}
