// Package capture reads webcam frames for the gesture source using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings.
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Config selects the capture device and the requested frame size.
type Config struct {
	DeviceID int
	Width    int
	Height   int
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	fps     int
}

// NewCamera creates a Camera for the configured device. Zero sizes fall back
// to 640x480; the initial FPS is DefaultFPS.
func NewCamera(config Config) Camera {
	if config.Width <= 0 {
		config.Width = DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = DefaultHeight
	}
	return &cameraImpl{
		config: config,
		fps:    DefaultFPS,
	}
}

// Open opens the capture device and requests the configured resolution.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open camera %d: device unavailable", c.config.DeviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	return nil
}

// Close releases the capture device. Closing a camera that is not open is a no-op.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen reports whether the capture device is open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
