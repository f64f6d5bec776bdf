package export

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// SVGOptions define el tamaño del gráfico. Los valores cero toman el default.
type SVGOptions struct {
	Width  int
	Height int
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 520
	}
	return o
}

const (
	colorBg     = "#0b1220"
	colorGrid   = "rgba(255,255,255,0.08)"
	colorText   = "rgba(255,255,255,0.85)"
	colorSpread = "#38bdf8"
	colorMean   = "rgba(255,255,255,0.65)"
	colorBand   = "#f59e0b"
	colorLong   = "#22c55e"
	colorShort  = "#ef4444"
	colorExit   = "#e5e7eb"
	fontFamily  = "ui-monospace, Menlo, Monaco, Consolas, monospace"
)

// canvas mapea índices de barra y valores a coordenadas del gráfico.
type canvas struct {
	buf          bytes.Buffer
	opt          SVGOptions
	n            int
	minV, maxV   float64
	left, top    float64
	plotW, plotH float64
}

func newCanvas(n int, minV, maxV float64, opt SVGOptions) (*canvas, error) {
	opt = opt.withDefaults()
	if math.IsInf(minV, 0) || math.IsInf(maxV, 0) || math.IsNaN(minV) || math.IsNaN(maxV) {
		return nil, fmt.Errorf("invalid value range")
	}
	if maxV <= minV {
		// línea plana: abrir un rango simétrico
		d := math.Max(math.Abs(minV)*0.05, 1)
		minV, maxV = minV-d, maxV+d
	}
	pad := (maxV - minV) * 0.05
	c := &canvas{
		opt:   opt,
		n:     n,
		minV:  minV - pad,
		maxV:  maxV + pad,
		left:  70,
		top:   24,
		plotW: float64(opt.Width) - 70 - 20,
		plotH: float64(opt.Height) - 24 - 40,
	}
	if c.plotW <= 10 || c.plotH <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}
	return c, nil
}

func (c *canvas) x(i int) float64 {
	if c.n <= 1 {
		return c.left + c.plotW/2
	}
	return c.left + float64(i)/float64(c.n-1)*c.plotW
}

func (c *canvas) y(v float64) float64 {
	r := (v - c.minV) / (c.maxV - c.minV)
	r = math.Max(0, math.Min(1, r))
	return c.top + (1-r)*c.plotH
}

func (c *canvas) open(title string, first, last time.Time) {
	w, h := strconv.Itoa(c.opt.Width), strconv.Itoa(c.opt.Height)
	c.buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	c.buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + w + `" height="` + h + `" viewBox="0 0 ` + w + ` ` + h + `">` + "\n")
	c.buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + colorBg + `"/>` + "\n")

	title = strings.TrimSpace(title)
	if title == "" {
		title = "spread"
	}
	c.text(c.left, 16, colorText, 14, title+"  "+first.Format("2006-01-02")+" ~ "+last.Format("2006-01-02"))

	for k := 0; k <= 5; k++ {
		yy := c.top + float64(k)/5*c.plotH
		c.line(c.left, yy, c.left+c.plotW, yy, colorGrid, 1, false)
		v := c.maxV - float64(k)/5*(c.maxV-c.minV)
		c.text(6, yy+4, colorText, 12, fmtValue(v))
	}

	footY := c.top + c.plotH + 28
	c.text(c.left, footY, colorText, 12, first.Format("2006-01-02"))
	c.text(c.left+c.plotW-70, footY, colorText, 12, last.Format("2006-01-02"))
}

func (c *canvas) close() []byte {
	c.buf.WriteString(`</svg>` + "\n")
	return c.buf.Bytes()
}

func (c *canvas) text(x, y float64, color string, size int, s string) {
	c.buf.WriteString(`<text x="` + fmtFloat(x) + `" y="` + fmtFloat(y) + `" fill="` + color + `" font-size="` + strconv.Itoa(size) +
		`" font-family="` + fontFamily + `">` + html.EscapeString(s) + `</text>` + "\n")
}

func (c *canvas) line(x1, y1, x2, y2 float64, color string, width float64, dash bool) {
	style := ""
	if dash {
		style = ` stroke-dasharray="6 6"`
	}
	c.buf.WriteString(`<line x1="` + fmtFloat(x1) + `" y1="` + fmtFloat(y1) + `" x2="` + fmtFloat(x2) + `" y2="` + fmtFloat(y2) +
		`" stroke="` + color + `" stroke-width="` + fmtFloat(width) + `"` + style + `/>` + "\n")
}

// polyline dibuja values, cortando el trazo donde ok(i) es false.
func (c *canvas) polyline(values []float64, ok func(int) bool, color string, width float64, dash bool) {
	style := ""
	if dash {
		style = ` stroke-dasharray="6 6"`
	}
	var pts []string
	flush := func() {
		if len(pts) > 1 {
			c.buf.WriteString(`<polyline fill="none" stroke="` + color + `" stroke-width="` + fmtFloat(width) + `"` + style +
				` points="` + strings.Join(pts, " ") + `"/>` + "\n")
		}
		pts = pts[:0]
	}
	for i, v := range values {
		if ok != nil && !ok(i) {
			flush()
			continue
		}
		pts = append(pts, fmtFloat(c.x(i))+","+fmtFloat(c.y(v)))
	}
	flush()
}

func (c *canvas) marker(i int, v float64, color, label string) {
	cx, cy := c.x(i), c.y(v)
	c.buf.WriteString(`<circle cx="` + fmtFloat(cx) + `" cy="` + fmtFloat(cy) + `" r="3.5" fill="` + color + `"/>` + "\n")
	if label != "" {
		c.text(cx+6, cy-6, color, 11, label)
	}
}

// RenderSpreadSVG dibuja el spread con su media móvil, las bandas de entrada y
// un marcador por cada entrada y salida de trade.
func RenderSpreadSVG(title string, spread domain.Spread, bands domain.Bands, trades []domain.Trade, opt SVGOptions) ([]byte, error) {
	n := spread.Len()
	if n < 2 {
		return nil, fmt.Errorf("export.RenderSpreadSVG: not enough points: %d", n)
	}
	if len(bands.States) != n {
		return nil, fmt.Errorf("export.RenderSpreadSVG: %d band states for %d points: %w", len(bands.States), n, domain.ErrAlignment)
	}

	values := spread.Values()
	minV, maxV := valueRange(values)
	mean := make([]float64, n)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i, st := range bands.States {
		if !st.Defined {
			continue
		}
		mean[i], upper[i], lower[i] = st.Mean, st.Upper, st.Lower
		minV = math.Min(minV, st.Lower)
		maxV = math.Max(maxV, st.Upper)
	}

	c, err := newCanvas(n, minV, maxV, opt)
	if err != nil {
		return nil, fmt.Errorf("export.RenderSpreadSVG: %w", err)
	}
	c.open(fmt.Sprintf("%s  W=%d k=%.2f", title, bands.Window, bands.NumStd), spread.Points[0].Time, spread.Points[n-1].Time)

	defined := func(i int) bool { return bands.States[i].Defined }
	c.polyline(upper, defined, colorBand, 1.2, true)
	c.polyline(lower, defined, colorBand, 1.2, true)
	c.polyline(mean, defined, colorMean, 1.2, false)
	c.polyline(values, nil, colorSpread, 1.5, false)

	index := make(map[int64]int, n)
	for i, p := range spread.Points {
		index[p.Time.UnixNano()] = i
	}
	for _, t := range trades {
		color, label := colorLong, "L"
		if t.Direction == domain.ShortSpread {
			color, label = colorShort, "S"
		}
		if i, ok := index[t.EntryTime.UnixNano()]; ok {
			c.marker(i, t.EntrySpread, color, label)
		}
		if i, ok := index[t.ExitTime.UnixNano()]; ok {
			exitLabel := ""
			if t.Forced {
				exitLabel = "end"
			}
			c.marker(i, t.ExitSpread, colorExit, exitLabel)
		}
	}
	return c.close(), nil
}

// RenderEquitySVG dibuja una curva de equity sobre la línea de cero.
func RenderEquitySVG(title string, curve []domain.EquityPoint, opt SVGOptions) ([]byte, error) {
	n := len(curve)
	if n < 2 {
		return nil, fmt.Errorf("export.RenderEquitySVG: not enough points: %d", n)
	}
	values := make([]float64, n)
	for i, p := range curve {
		values[i] = p.Equity
	}
	minV, maxV := valueRange(values)
	minV, maxV = math.Min(minV, 0), math.Max(maxV, 0)

	c, err := newCanvas(n, minV, maxV, opt)
	if err != nil {
		return nil, fmt.Errorf("export.RenderEquitySVG: %w", err)
	}
	c.open(title, curve[0].Time, curve[n-1].Time)
	c.line(c.left, c.y(0), c.left+c.plotW, c.y(0), colorMean, 1, true)

	color := colorLong
	if values[n-1] < 0 {
		color = colorShort
	}
	c.polyline(values, nil, color, 1.5, false)
	c.text(c.left+c.plotW-160, c.top+14, color, 12, "final "+fmtValue(values[n-1]))
	return c.close(), nil
}

func valueRange(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtValue(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1000:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case a >= 100:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case a >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
}
