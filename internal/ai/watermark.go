package ai

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const watermarkMargin = 10

// Watermark stamps text into the bottom-right corner of an image and returns
// it as PNG. The label is scaled to roughly 3% of the image width.
func Watermark(data []byte, text string) ([]byte, error) {
	if text == "" {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)

	label := renderLabel(text)

	scale := bounds.Dx() * 3 / 100 / basicfont.Face7x13.Height
	if scale < 1 {
		scale = 1
	}
	w := label.Bounds().Dx() * scale
	h := label.Bounds().Dy() * scale

	x := canvas.Bounds().Dx() - w - watermarkMargin
	y := canvas.Bounds().Dy() - h - watermarkMargin
	if x < 0 || y < 0 {
		return data, nil
	}

	xdraw.BiLinear.Scale(canvas, image.Rect(x, y, x+w, y+h), label, label.Bounds(), xdraw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return out.Bytes(), nil
}

// renderLabel draws text on a translucent dark box at the font's native size.
func renderLabel(text string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	const padX, padY = 5, 2

	label := image.NewRGBA(image.Rect(0, 0, width+2*padX, face.Height+2*padY))
	draw.Draw(label, label.Bounds(), image.NewUniform(color.NRGBA{0, 0, 0, 120}), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 220}),
		Face: face,
		Dot:  fixed.P(padX, padY+face.Ascent),
	}
	d.DrawString(text)
	return label
}
