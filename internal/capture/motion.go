package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants.
const (
	// BlurKernel is the Gaussian blur kernel size applied before differencing.
	BlurKernel = 21
	// PixelDelta is the per-pixel grey level change that counts as motion.
	PixelDelta = 25
)

// MotionDetector reports whether consecutive frames differ enough to be
// worth running the hand detector on. A still hand keeps its last gesture.
type MotionDetector struct {
	threshold float64
	prevGray  gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, e.g. 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion was
// seen and the changed-pixel percentage. The first frame only primes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	blurred := greyBlur(frame)
	defer blurred.Close()

	if !m.primed {
		blurred.CopyTo(&m.prevGray)
		m.primed = true
		return false, 0
	}

	changed := changedPercent(blurred, m.prevGray)
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// greyBlur converts frame to a blurred greyscale Mat owned by the caller.
func greyBlur(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurKernel, Y: BlurKernel}, 0, 0, gocv.BorderDefault)
	return blurred
}

// changedPercent returns the percentage of pixels whose grey level moved by more than PixelDelta.
func changedPercent(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, PixelDelta, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total) * 100.0
}

// Reset drops the baseline so the next frame primes it again.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline Mat. The detector may still be used afterwards.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.primed = false
}

// SetThreshold sets the motion threshold percentage; non-positive values are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}
