package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var boxColors = []color.RGBA{
	{R: 255, A: 255},                 // red
	{B: 255, A: 255},                 // blue
	{G: 200, A: 255},                 // green
	{R: 255, G: 165, A: 255},         // orange
	{R: 160, B: 160, A: 255},         // purple
}

// annotate renders the analysis onto a copy of the photo and returns it as a
// PNG data URL. On failure the original data is returned unchanged.
func annotate(original string, img image.Image, analysis *Analysis) string {
	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	for i, device := range analysis.Devices {
		c := boxColors[i%len(boxColors)]
		drawRect(canvas, device.Box, c, 3)
		label := fmt.Sprintf("%s (%.1f)", device.Name, device.Confidence)
		drawLabel(canvas, device.Box.Min.X, device.Box.Min.Y-6, label, c)
	}

	black := color.RGBA{A: 255}
	drawLabel(canvas, 10, 20, fmt.Sprintf("Room: %s (%.1f)", analysis.RoomType, analysis.Confidence), black)
	drawLabel(canvas, 10, 40, fmt.Sprintf("Est. Size: %.1fm x %.1fm", analysis.Dimensions[0], analysis.Dimensions[1]), black)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		log.Printf("[Vision] Failed to encode annotated image: %v", err)
		return original
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func drawRect(canvas *image.RGBA, rect image.Rectangle, c color.RGBA, width int) {
	rect = rect.Intersect(canvas.Bounds())
	for w := 0; w < width; w++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			canvas.Set(x, rect.Min.Y+w, c)
			canvas.Set(x, rect.Max.Y-1-w, c)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			canvas.Set(rect.Min.X+w, y, c)
			canvas.Set(rect.Max.X-1-w, y, c)
		}
	}
}

func drawLabel(canvas *image.RGBA, x, y int, text string, c color.RGBA) {
	if y < basicfont.Face7x13.Height {
		y = basicfont.Face7x13.Height
	}
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
