package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/ayusman/estelar/internal/render"
	"gocv.io/x/gocv"
)

// previewInterval is how often the camera preview is polled, about 15 FPS.
const previewInterval = 66 * time.Millisecond

// writeMJPEGPart writes one JPEG part of a multipart/x-mixed-replace stream.
func writeMJPEGPart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func startMJPEG(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// UniverseHandler renders the particle field for each client and streams it as MJPEG.
type UniverseHandler struct {
	app  *app.App
	fps  int
	done <-chan struct{}
}

// NewUniverseHandler creates a handler rendering at fps frames per second.
// Streams end when the client goes away or done is closed.
func NewUniverseHandler(a *app.App, fps int, done <-chan struct{}) *UniverseHandler {
	return &UniverseHandler{app: a, fps: fps, done: done}
}

// ServeHTTP streams rendered frames until the client goes away or the server shuts down.
func (h *UniverseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rc := h.app.Settings().Render
	scene, err := render.NewScene(render.Options{
		Width:     rc.Width,
		Height:    rc.Height,
		FOV:       rc.FOV,
		CameraZ:   rc.CameraZ,
		PointSize: rc.PointSize,
	})
	if err != nil {
		log.Printf("universe stream: %v", err)
		http.Error(w, "Failed to create scene", http.StatusInternalServerError)
		return
	}
	defer scene.Close()

	startMJPEG(w)

	ticker := time.NewTicker(time.Second / time.Duration(h.fps))
	defer ticker.Stop()

	for {
		jpeg, err := h.encode(scene, time.Now())
		if err != nil {
			log.Printf("universe stream: %v", err)
			return
		}
		if err := writeMJPEGPart(w, jpeg); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
		}
	}
}

func (h *UniverseHandler) encode(scene *render.Scene, now time.Time) ([]byte, error) {
	img := scene.Render(h.app.Field(), h.app.State().Status(), now)

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// CameraHandler streams the latest camera frame seen by the gesture pipeline.
type CameraHandler struct {
	app  *app.App
	done <-chan struct{}
}

// NewCameraHandler creates a new CameraHandler. Streams end when done is closed.
func NewCameraHandler(a *app.App, done <-chan struct{}) *CameraHandler {
	return &CameraHandler{app: a, done: done}
}

// ServeHTTP streams preview frames. It answers 503 when the pipeline has not
// produced a frame yet.
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	last := h.app.CameraPreview()
	if len(last) == 0 {
		http.Error(w, "Camera preview unavailable", http.StatusServiceUnavailable)
		return
	}

	startMJPEG(w)
	if err := writeMJPEGPart(w, last); err != nil {
		return
	}

	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
		}

		frame := h.app.CameraPreview()
		if len(frame) == 0 || &frame[0] == &last[0] {
			continue
		}
		last = frame
		if err := writeMJPEGPart(w, frame); err != nil {
			return
		}
	}
}
