package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Errors returned by MockCamera.
var (
	ErrNoFrames   = errors.New("no frames available")
	ErrFramesDone = errors.New("no more frames")
)

// MockCamera plays back a fixed frame sequence. It stands in for the webcam in
// tests and when the camera is disabled in the configuration.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	openErr error
	fps     int
	mu      sync.Mutex
	running bool
	opens   int
	closes  int
}

// NewMockCamera returns a camera that replays frames, looping if loop is set.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

// SetOpenError makes the next Open calls fail with err, simulating a denied camera.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.closes++
	}
	c.running = false
	return nil
}

// ReadFrame returns a clone of the next frame; the caller closes it.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, ErrNoFrames
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrFramesDone
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Closes returns how many times an open camera was closed.
func (c *MockCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}
