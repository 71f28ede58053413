package detector

import "github.com/ayusman/estelar/internal/gesture"

// DefaultFistThreshold is the mean wrist-to-fingertip distance, in normalized
// image units, below which a hand counts as a fist.
const DefaultFistThreshold = 0.18

// Classifier turns detected hands into a gesture.
type Classifier struct {
	threshold float64
}

// NewClassifier returns a Classifier using threshold, or DefaultFistThreshold
// when threshold is not positive.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultFistThreshold
	}
	return &Classifier{threshold: threshold}
}

// Threshold returns the fist threshold in use.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify returns Closed when the hand's mean fingertip distance is strictly
// below the threshold. A nil hand is Open; a distance equal to the threshold is Open.
func (c *Classifier) Classify(hand *HandLandmarks) gesture.State {
	if hand == nil {
		return gesture.Open
	}
	if hand.MeanTipDistance() < c.threshold {
		return gesture.Closed
	}
	return gesture.Open
}

// ClassifyFirst classifies the first detected hand; no hands means Open.
func (c *Classifier) ClassifyFirst(hands []HandLandmarks) gesture.State {
	if len(hands) == 0 {
		return gesture.Open
	}
	return c.Classify(&hands[0])
}
