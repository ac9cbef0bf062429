package overlay

import (
	"fmt"
	"strings"
)

// Spec describes the text placed over every frame of a clip.
type Spec struct {
	// Primary is the headline. It is required.
	Primary string
	// Secondary is an optional tagline rendered below the headline
	// at a reduced size.
	Secondary string
}

// Validate checks that the spec carries renderable text.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Primary) == "" {
		return fmt.Errorf("primary overlay text is required")
	}
	return nil
}

// Style controls how overlay text is sized and laid out relative to the
// frame. Zero values fall back to the defaults at render time.
type Style struct {
	// ScaleDivisor sets the primary font size to min(width, height)
	// divided by this value.
	ScaleDivisor int
	// SecondaryRatio scales the secondary line relative to the primary.
	SecondaryRatio float64
	// LineSpacing is the gap between the two lines as a fraction of the
	// primary line height.
	LineSpacing float64
}

// DefaultStyle returns the layout used when configuration does not
// override it.
func DefaultStyle() Style {
	return Style{
		ScaleDivisor:   12,
		SecondaryRatio: 0.4,
		LineSpacing:    0.5,
	}
}

func (s Style) normalized() Style {
	d := DefaultStyle()
	if s.ScaleDivisor <= 0 {
		s.ScaleDivisor = d.ScaleDivisor
	}
	if s.SecondaryRatio <= 0 {
		s.SecondaryRatio = d.SecondaryRatio
	}
	if s.LineSpacing <= 0 {
		s.LineSpacing = d.LineSpacing
	}
	return s
}
