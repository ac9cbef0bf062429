package ffmpeg

import "sort"

// Profile describes an output container/codec pairing
type Profile struct {
	Name        string
	Container   string
	Extension   string
	VideoCodec  string
	PixelFormat string
	AudioCodec  string
	// MuxAudio controls whether finalization attempts to attach the
	// original audio track; profiles without it stay silent
	MuxAudio  bool
	ExtraArgs []string
}

var profiles = map[string]Profile{
	"mp4": {
		Name:        "mp4",
		Container:   "mp4",
		Extension:   ".mp4",
		VideoCodec:  "libx264",
		PixelFormat: "yuv420p",
		AudioCodec:  "aac",
		MuxAudio:    true,
		ExtraArgs:   []string{"-movflags", "+faststart"},
	},
	"webm": {
		Name:        "webm",
		Container:   "webm",
		Extension:   ".webm",
		VideoCodec:  "libvpx-vp9",
		PixelFormat: "yuv420p",
		AudioCodec:  "",
		MuxAudio:    false,
		// -b:v 0 puts vp9 in constant-quality mode with -crf
		ExtraArgs: []string{"-b:v", "0", "-deadline", "good"},
	},
}

// LookupProfile retrieves an output profile by name
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ProfileNames returns the registered profile names, sorted
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
