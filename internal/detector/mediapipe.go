package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ServiceScript is the helper that wraps MediaPipe Hands.
const ServiceScript = "hand_service.py"

// idleShutdown is how long the helper may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// ErrServiceNotFound is returned when the MediaPipe helper script cannot be located.
var ErrServiceNotFound = errors.New("hand tracking service not found")

var (
	errEncode       = errors.New("encode frame")
	errServiceReply = errors.New("hand tracking service")
)

// MediaPipeDetector implements Detector by streaming JPEG frames to a Python
// MediaPipe helper over stdin and reading one JSON line per frame from stdout.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer

	// command builds the helper process. Nil runs the Python script.
	command func() *exec.Cmd
}

// NewMediaPipeDetector locates the helper script. The Python process is
// started lazily on the first Detect call.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := findServiceScript()
	if script == "" {
		return nil, ErrServiceNotFound
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
	}, nil
}

// Detect sends the frame to the helper and returns the hands it reports.
// A pipe failure stops the helper so the next call starts a fresh one.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	if err := d.writeFrame(frame); err != nil {
		if !errors.Is(err, errEncode) {
			d.shutdown()
		}
		return nil, err
	}

	hands, err := d.readHands()
	if err != nil {
		if !errors.Is(err, errServiceReply) {
			d.shutdown()
		}
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

// Close stops the helper process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// writeFrame encodes the frame as JPEG and writes a 4-byte big-endian length prefix followed by the bytes.
func (d *MediaPipeDetector) writeFrame(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("%w: %w", errEncode, err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	if _, err := d.stdin.Write(header[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func (d *MediaPipeDetector) readHands() ([]HandLandmarks, error) {
	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", errServiceReply, err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("%w: %s", errServiceReply, response.Error)
	}

	hands := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		hands = append(hands, h.toHandLandmarks())
	}
	return hands, nil
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	if d.command != nil {
		d.cmd = d.command()
	} else {
		d.cmd = d.pythonCommand()
	}

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start hand tracking service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *MediaPipeDetector) pythonCommand() *exec.Cmd {
	python := findVenvPython()
	if python == "" {
		python = "python3"
	}

	return exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)
}

func (d *MediaPipeDetector) shutdown() error {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// searchPaths returns candidate locations for rel, relative to the working
// directory, the executable and ~/.estelar.
func searchPaths(rel string) []string {
	candidates := []string{rel, filepath.Join("..", rel), filepath.Join("..", "..", rel)}

	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".estelar", rel))
	}
	return candidates
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

func findServiceScript() string {
	return firstExisting(searchPaths(filepath.Join("scripts", ServiceScript)))
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	return firstExisting(searchPaths(filepath.Join("venv", "bin", "python")))
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
