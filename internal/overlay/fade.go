package overlay

import "math"

// FadeSchedule maps a frame index to the overlay opacity for a clip with a
// one second fade-in and a one second fade-out. Clips shorter than two
// seconds never reach full opacity; a clip under one second spends its
// whole run in the fade-in ramp.
type FadeSchedule struct {
	TotalFrames int
	FPS         int
}

// NewFadeSchedule builds a schedule from the probed frame count and rate.
// The rate is rounded to the nearest whole frame per second.
func NewFadeSchedule(totalFrames int, fps float64) FadeSchedule {
	rounded := int(math.Round(fps))
	if rounded < 1 {
		rounded = 1
	}
	return FadeSchedule{TotalFrames: totalFrames, FPS: rounded}
}

// Opacity returns the overlay opacity for the zero-based frame index i.
// The fade-in ramp takes precedence when the ramps would overlap.
func (s FadeSchedule) Opacity(i int) float64 {
	if i < s.FPS {
		return float64(i) / float64(s.FPS)
	}
	if i > s.TotalFrames-s.FPS {
		return float64(s.TotalFrames-i) / float64(s.FPS)
	}
	return 1.0
}
