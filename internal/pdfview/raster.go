package pdfview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/dgallion1/markview/internal/viewer"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// maxSide bounds the full-size raster before scaling.
const maxSide = 2000

// rasterize paints pg with its annotations and returns a PNG at scale.
func rasterize(pg page, annots []viewer.NativeAnnotation, scale float64) ([]byte, error) {
	// One pixel per point, shrunk for oversized pages.
	ppp := math.Min(1, maxSide/math.Max(pg.width, pg.height))
	w := max(int(math.Ceil(pg.width*ppp)), 1)
	h := max(int(math.Ceil(pg.height*ppp)), 1)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	toPx := func(x, y float64) (int, int) {
		return int(x * ppp), h - int(y*ppp)
	}

	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	for _, run := range pg.runs {
		x, y := toPx(run.X, run.Y)
		d.Dot = fixed.P(x, y)
		d.DrawString(run.S)
	}

	for _, n := range annots {
		paintAnnotation(img, annotation.Annotation(n), toPx)
	}

	var out image.Image = img
	if scale > 0 && scale != 1 {
		sw := max(int(math.Round(float64(w)*scale)), 1)
		sh := max(int(math.Round(float64(h)*scale)), 1)
		dst := image.NewRGBA(image.Rect(0, 0, sw, sh))
		interp := xdraw.Interpolator(xdraw.ApproxBiLinear)
		if scale > 1 {
			interp = xdraw.BiLinear
		}
		interp.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func paintAnnotation(img *image.RGBA, a annotation.Annotation, toPx func(x, y float64) (int, int)) {
	rect, ok := a.Rect()
	if !ok {
		return
	}
	x0, y0 := toPx(math.Min(rect[0], rect[2]), math.Max(rect[1], rect[3]))
	x1, y1 := toPx(math.Max(rect[0], rect[2]), math.Min(rect[1], rect[3]))
	r := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	if r.Empty() {
		return
	}

	c := color.NRGBA{A: 0xff}
	if rgb, ok := a.Color(); ok {
		c.R, c.G, c.B = channel(rgb[0]), channel(rgb[1]), channel(rgb[2])
	}

	switch a.Type() {
	case annotation.Highlight:
		if op, ok := a.Opacity(); ok {
			c.A = uint8(math.Round(math.Min(math.Max(op, 0), 1) * 255))
		} else {
			c.A = 0x80
		}
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Over)
	case annotation.FreeText:
		value, _ := a["value"].(string)
		d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: basicfont.Face7x13}
		line := r.Min.Y + basicfont.Face7x13.Ascent
		for _, s := range strings.Split(value, "\n") {
			if line > r.Max.Y {
				break
			}
			d.Dot = fixed.P(r.Min.X, line)
			d.DrawString(s)
			line += basicfont.Face7x13.Height
		}
	default:
		outline(img, r, c)
	}
}

func outline(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// channel clamps a 0-255 color component.
func channel(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 255)))
}

func dataURL(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}

// parseHex converts "#RRGGBB" to 0-255 components.
func parseHex(hex string) ([3]float64, error) {
	var rgb [3]float64
	s, ok := strings.CutPrefix(hex, "#")
	if !ok || len(s) != 6 {
		return rgb, fmt.Errorf("color %q is not #RRGGBB", hex)
	}
	for i := range 3 {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return rgb, fmt.Errorf("color %q is not #RRGGBB", hex)
		}
		rgb[i] = float64(v)
	}
	return rgb, nil
}
