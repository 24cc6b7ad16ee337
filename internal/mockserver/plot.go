package mockserver

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"slices"

	"github.com/zjrosen/antrail/internal/log"
)

const (
	plotW   = 640
	plotH   = 360
	plotPad = 24
)

var (
	colorBG   = color.RGBA{255, 255, 255, 255}
	colorAxis = color.RGBA{60, 60, 60, 255}
	colorBox  = color.RGBA{70, 130, 180, 255}
	colorLine = color.RGBA{220, 80, 60, 255}
)

func writePNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		log.Debug(log.CatMock, "encode png", "error", err)
	}
}

type canvas struct {
	img      *image.RGBA
	min, max float64
}

func newCanvas(series ...[]float64) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, plotW, plotH))
	for y := range plotH {
		for x := range plotW {
			img.Set(x, y, colorBG)
		}
	}
	c := &canvas{img: img, min: math.Inf(1), max: math.Inf(-1)}
	for _, s := range series {
		for _, v := range s {
			c.min = min(c.min, v)
			c.max = max(c.max, v)
		}
	}
	if c.max <= c.min {
		c.max = c.min + 1
	}
	c.hline(plotPad, plotW-plotPad, plotH-plotPad, colorAxis)
	c.vline(plotPad, plotPad, plotH-plotPad, colorAxis)
	return c
}

func (c *canvas) y(v float64) int {
	frac := (v - c.min) / (c.max - c.min)
	return plotH - plotPad - int(frac*float64(plotH-2*plotPad))
}

func (c *canvas) hline(x0, x1, y int, col color.Color) {
	for x := min(x0, x1); x <= max(x0, x1); x++ {
		c.img.Set(x, y, col)
	}
}

func (c *canvas) vline(x, y0, y1 int, col color.Color) {
	for y := min(y0, y1); y <= max(y0, y1); y++ {
		c.img.Set(x, y, col)
	}
}

func (c *canvas) line(x0, y0, x1, y1 int, col color.Color) {
	steps := max(abs(x1-x0), abs(y1-y0), 1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.img.Set(x0+int(t*float64(x1-x0)), y0+int(t*float64(y1-y0)), col)
	}
}

// boxplot draws one box (quartiles, median, whiskers at min and max) per
// series.
func boxplot(series [][]float64) image.Image {
	c := newCanvas(series...)
	slot := float64(plotW-2*plotPad) / float64(len(series))
	half := max(int(slot*0.3), 1)

	for i, s := range series {
		if len(s) == 0 {
			continue
		}
		sorted := slices.Sorted(slices.Values(s))
		q1, med, q3 := quantile(sorted, 0.25), quantile(sorted, 0.5), quantile(sorted, 0.75)
		cx := plotPad + int(slot*(float64(i)+0.5))

		c.vline(cx, c.y(sorted[0]), c.y(q1), colorAxis)
		c.vline(cx, c.y(q3), c.y(sorted[len(sorted)-1]), colorAxis)
		c.hline(cx-half, cx+half, c.y(q1), colorBox)
		c.hline(cx-half, cx+half, c.y(q3), colorBox)
		c.vline(cx-half, c.y(q1), c.y(q3), colorBox)
		c.vline(cx+half, c.y(q1), c.y(q3), colorBox)
		c.hline(cx-half, cx+half, c.y(med), colorLine)
	}
	return c.img
}

// lineChart draws values left to right.
func lineChart(values []float64) image.Image {
	c := newCanvas(values)
	if len(values) == 1 {
		c.hline(plotPad, plotW-plotPad, c.y(values[0]), colorLine)
		return c.img
	}
	step := float64(plotW-2*plotPad) / float64(len(values)-1)
	for i := 1; i < len(values); i++ {
		x0 := plotPad + int(step*float64(i-1))
		x1 := plotPad + int(step*float64(i))
		c.line(x0, c.y(values[i-1]), x1, c.y(values[i]), colorLine)
	}
	return c.img
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
