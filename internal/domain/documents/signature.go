package documents

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"github.com/Manelgon/doctoria/internal/platform/render"
)

// ErrEmptyPad is returned when exporting a pad with no strokes.
var ErrEmptyPad = errors.New("signature pad is empty")

// Pad is the capture surface for one signature. Nothing is persisted until
// the ink is exported and bound to a document.
type Pad interface {
	IsEmpty() bool
	Clear()
	ExportImage() ([]byte, error)
}

// Point is one sample of a signature stroke, in pad coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	defaultPadWidth  = 600
	defaultPadHeight = 200
	inkRadius        = 1
	trimMargin       = 4
)

// InkPad buffers signature strokes and rasterizes them to a trimmed PNG on
// export. The buffer is ephemeral; Clear discards everything.
type InkPad struct {
	mu      sync.Mutex
	width   int
	height  int
	strokes [][]Point
}

// NewInkPad creates a pad with the given pixel dimensions. Non-positive
// dimensions fall back to the default capture surface.
func NewInkPad(width, height int) *InkPad {
	if width <= 0 {
		width = defaultPadWidth
	}
	if height <= 0 {
		height = defaultPadHeight
	}
	return &InkPad{width: width, height: height}
}

// AddStroke appends one continuous stroke. Empty strokes are ignored.
func (p *InkPad) AddStroke(points []Point) {
	if len(points) == 0 {
		return
	}
	stroke := make([]Point, len(points))
	copy(stroke, points)
	p.mu.Lock()
	p.strokes = append(p.strokes, stroke)
	p.mu.Unlock()
}

func (p *InkPad) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.strokes) == 0
}

func (p *InkPad) Clear() {
	p.mu.Lock()
	p.strokes = nil
	p.mu.Unlock()
}

// ExportImage rasterizes the buffered strokes, trims the canvas to the ink
// bounding box plus a small margin, and encodes the result as PNG.
func (p *InkPad) ExportImage() ([]byte, error) {
	p.mu.Lock()
	strokes := p.strokes
	p.mu.Unlock()
	if len(strokes) == 0 {
		return nil, ErrEmptyPad
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	minX, minY := p.width, p.height
	maxX, maxY := -1, -1
	plot := func(x, y int) {
		for dy := -inkRadius; dy <= inkRadius; dy++ {
			for dx := -inkRadius; dx <= inkRadius; dx++ {
				px, py := x+dx, y+dy
				if px < 0 || py < 0 || px >= p.width || py >= p.height {
					continue
				}
				canvas.SetNRGBA(px, py, color.NRGBA{A: 255})
				if px < minX {
					minX = px
				}
				if py < minY {
					minY = py
				}
				if px > maxX {
					maxX = px
				}
				if py > maxY {
					maxY = py
				}
			}
		}
	}

	for _, stroke := range strokes {
		prev := stroke[0]
		plot(int(prev.X), int(prev.Y))
		for _, pt := range stroke[1:] {
			steps := int(math.Max(math.Abs(pt.X-prev.X), math.Abs(pt.Y-prev.Y)))
			for s := 1; s <= steps; s++ {
				t := float64(s) / float64(steps)
				plot(int(prev.X+(pt.X-prev.X)*t), int(prev.Y+(pt.Y-prev.Y)*t))
			}
			prev = pt
		}
	}

	if maxX < minX {
		// every sample landed outside the canvas
		return nil, ErrEmptyPad
	}

	trim := image.Rect(minX-trimMargin, minY-trimMargin, maxX+trimMargin+1, maxY+trimMargin+1)
	trim = trim.Intersect(canvas.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, trim.Dx(), trim.Dy()))
	draw.Draw(out, out.Bounds(), canvas, trim.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Embed places exported ink into a bound document's signature slots. Absent
// images leave the slot empty; whether a signature is required is decided by
// the lifecycle controller, not here.
func Embed(doc *render.Document, doctorPNG, patientPNG []byte) {
	if len(doctorPNG) > 0 {
		doc.DoctorInk = doctorPNG
	}
	if len(patientPNG) > 0 {
		doc.PatientInk = patientPNG
	}
}
