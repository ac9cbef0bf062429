package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontOnce sync.Once
	fontReg  *opentype.Font
	fontErr  error
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		fontReg, fontErr = opentype.Parse(goregular.TTF)
	})
	return fontReg, fontErr
}

func newFace(size float64) (font.Face, error) {
	fnt, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// Layer is a pre-rendered text overlay matching one frame geometry. It is
// rendered once per clip and blended into every frame at a per-frame
// opacity.
type Layer struct {
	img  *image.NRGBA
	rect image.Rectangle
}

var strokeOffsets = [8]image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// RenderLayer rasterizes the overlay text for a width x height frame. The
// primary line sits at the frame center; the secondary line, when present,
// stacks below it and the block as a whole is centered.
func RenderLayer(spec Spec, style Style, width, height int) (*Layer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid layer geometry %dx%d", width, height)
	}
	style = style.normalized()

	short := width
	if height < short {
		short = height
	}
	primarySize := float64(short) / float64(style.ScaleDivisor)

	pFace, err := newFace(primarySize)
	if err != nil {
		return nil, err
	}
	defer pFace.Close()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	if spec.Secondary == "" {
		rect := drawCenteredLine(img, pFace, spec.Primary, width, height, strokeWidth(primarySize))
		return &Layer{img: img, rect: rect.Intersect(img.Bounds())}, nil
	}

	secondarySize := primarySize * style.SecondaryRatio
	sFace, err := newFace(secondarySize)
	if err != nil {
		return nil, err
	}
	defer sFace.Close()

	pm := pFace.Metrics()
	sm := sFace.Metrics()
	pLineH := (pm.Ascent + pm.Descent).Ceil()
	sLineH := (sm.Ascent + sm.Descent).Ceil()
	gap := int(math.Round(style.LineSpacing * float64(pLineH)))

	blockTop := (height - (pLineH + gap + sLineH)) / 2
	pBase := blockTop + pm.Ascent.Ceil()
	sBase := blockTop + pLineH + gap + sm.Ascent.Ceil()

	r1 := drawLine(img, pFace, spec.Primary, centerX(pFace, spec.Primary, width), pBase, strokeWidth(primarySize))
	r2 := drawLine(img, sFace, spec.Secondary, centerX(sFace, spec.Secondary, width), sBase, strokeWidth(secondarySize))

	return &Layer{img: img, rect: r1.Union(r2).Intersect(img.Bounds())}, nil
}

// strokeWidth picks the outline thickness for a given font size.
func strokeWidth(size float64) int {
	w := int(math.Round(size / 24))
	if w < 1 {
		w = 1
	}
	return w
}

// centerX returns the x origin that centers the ink of text horizontally.
func centerX(face font.Face, text string, width int) int {
	b, _ := font.BoundString(face, text)
	inkW := (b.Max.X - b.Min.X).Ceil()
	return (width-inkW)/2 - b.Min.X.Floor()
}

// drawCenteredLine places a single line so its ink is centered both ways.
func drawCenteredLine(img *image.NRGBA, face font.Face, text string, width, height, stroke int) image.Rectangle {
	b, _ := font.BoundString(face, text)
	inkH := (b.Max.Y - b.Min.Y).Ceil()
	baseline := (height-inkH)/2 - b.Min.Y.Floor()
	return drawLine(img, face, text, centerX(face, text, width), baseline, stroke)
}

// drawLine draws text with a black outline and white fill, returning the
// pixel rectangle the ink may have touched.
func drawLine(img *image.NRGBA, face font.Face, text string, x, baseline, stroke int) image.Rectangle {
	outline := image.NewUniform(color.NRGBA{A: 255})
	fill := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	for _, off := range strokeOffsets {
		d := font.Drawer{
			Dst:  img,
			Src:  outline,
			Face: face,
			Dot:  fixed.P(x+off.X*stroke, baseline+off.Y*stroke),
		}
		d.DrawString(text)
	}

	d := font.Drawer{
		Dst:  img,
		Src:  fill,
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)

	b, _ := font.BoundString(face, text)
	return image.Rect(
		x+b.Min.X.Floor()-stroke,
		baseline+b.Min.Y.Floor()-stroke,
		x+b.Max.X.Ceil()+stroke+1,
		baseline+b.Max.Y.Ceil()+stroke+1,
	)
}

// Blend composites the layer into a raw rgb24 frame at the given opacity.
// Opacity at or below zero leaves the frame untouched. The blend walks only
// the rectangle the text occupies.
func (l *Layer) Blend(frame []byte, frameW, frameH int, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}

	// Fixed-point opacity; 65536 keeps full opacity lossless so the
	// plateau blend is exact.
	oq := uint32(math.Round(opacity * 65536))

	rect := l.rect.Intersect(image.Rect(0, 0, frameW, frameH))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		lo := l.img.PixOffset(rect.Min.X, y)
		fo := (y*frameW + rect.Min.X) * 3
		for x := rect.Min.X; x < rect.Max.X; x++ {
			la := uint32(l.img.Pix[lo+3])
			if la != 0 {
				a := la * oq >> 16
				na := 255 - a
				frame[fo+0] = uint8((uint32(frame[fo+0])*na + uint32(l.img.Pix[lo+0])*a + 127) / 255)
				frame[fo+1] = uint8((uint32(frame[fo+1])*na + uint32(l.img.Pix[lo+1])*a + 127) / 255)
				frame[fo+2] = uint8((uint32(frame[fo+2])*na + uint32(l.img.Pix[lo+2])*a + 127) / 255)
			}
			lo += 4
			fo += 3
		}
	}
}
