package app

import (
	"log"
	"time"

	"github.com/ayusman/estelar/internal/gesture"
	"gocv.io/x/gocv"
)

// runPipeline reads camera frames and keeps the gesture cell current.
//
// The camera idles at IdleFPS. Motion switches it to ActiveFPS and enables
// hand detection; after IdleTimeout without motion it idles again and the
// last gesture is held, so a still fist stays closed.
func (a *App) runPipeline(stopCh <-chan struct{}) {
	defer a.wg.Done()

	activeMode := false
	lastMotion := time.Now()
	detectorFailing := false

	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	setRate := func(fps int) {
		a.camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			log.Printf("Error reading frame: %v", err)
			continue
		}
		a.storePreview(frame)

		moved, _ := a.motion.Detect(frame)
		if moved {
			lastMotion = time.Now()
			if !activeMode {
				activeMode = true
				setRate(ActiveFPS)
				log.Println("Switched to active mode")
			}
		} else if activeMode && time.Since(lastMotion) > IdleTimeout {
			activeMode = false
			setRate(IdleFPS)
			log.Println("Switched to idle mode")
		}

		if !activeMode {
			frame.Close()
			continue
		}

		hands, err := a.detector.Detect(frame)
		frame.Close()
		if err != nil {
			if !detectorFailing {
				log.Printf("Error detecting hands: %v", err)
				detectorFailing = true
				a.setTracking(TrackingCameraError)
			}
			a.setHands(0)
			a.SetGesture(gesture.Open)
			continue
		}
		if detectorFailing {
			detectorFailing = false
			a.setTracking(TrackingActive)
			log.Println("Hand detection recovered")
		}

		a.setHands(len(hands))
		a.SetGesture(a.classifier.ClassifyFirst(hands))
	}
}

// storePreview keeps the frame as JPEG for the camera preview stream.
func (a *App) storePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.mu.Lock()
	a.preview = data
	a.mu.Unlock()
}

func (a *App) setHands(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hands = n
}
