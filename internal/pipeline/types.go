package pipeline

import (
	"errors"

	"github.com/kikiluvv/titlecannon/internal/overlay"
)

// Request describes one finishing run.
type Request struct {
	// SourceURL is the remote clip to fetch and finish.
	SourceURL string
	// Overlay is the text burned into every frame.
	Overlay overlay.Spec
	// OutputPath is where the finished clip lands. Empty picks a
	// finished_<id> name in the configured output directory.
	OutputPath string
	// Profile names the output profile; empty uses the configured one.
	Profile string
}

// AudioStatus reports how the finished clip came out on the audio side.
type AudioStatus int

const (
	// AudioMuxed means the original source track plays in the final cut.
	AudioMuxed AudioStatus = iota
	// AudioMissing means the source had no audio track to carry over.
	AudioMissing
	// AudioDropped means muxing failed and the visual-only cut shipped.
	AudioDropped
	// AudioOmitted means the output profile never carries audio.
	AudioOmitted
)

func (s AudioStatus) String() string {
	switch s {
	case AudioMuxed:
		return "muxed"
	case AudioMissing:
		return "missing"
	case AudioDropped:
		return "dropped"
	case AudioOmitted:
		return "omitted"
	}
	return "unknown"
}

// Degraded reports whether the clip shipped without audio it was meant to
// carry.
func (s AudioStatus) Degraded() bool {
	return s == AudioDropped
}

// Result is what a successful run hands back.
type Result struct {
	// Path is the exported finished clip, outside any scratch space.
	Path string
	// Audio records whether the cut is enhanced or degraded.
	Audio AudioStatus
	// Frames is the number of frames composited.
	Frames int
}

// ErrProcessingFailed is the single failure signal for a whole run. Stage
// detail lives in the message and the logs; callers branch on success or
// failure, nothing finer.
var ErrProcessingFailed = errors.New("video processing failed")
