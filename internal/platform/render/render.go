// Package render turns bound document content into a paginated A4 PDF
// artifact. Layout happens at a fixed nominal page width; content is split
// into uniform line units and distributed over as many pages as its measured
// height requires.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"
)

// RenderError wraps any failure while laying out or assembling an artifact.
// No partial artifact is ever returned alongside one.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func renderErr(stage string, err error) error {
	return &RenderError{Stage: stage, Err: err}
}

// Document is the layout model handed to the renderer: a title, ordered
// sections, and the two reserved signature slots. Ink images are optional;
// an empty slot is drawn as an empty labeled box.
type Document struct {
	Title      string
	Sections   []Section
	DoctorInk  []byte // PNG, optional
	PatientInk []byte // PNG, optional

	// CreatedAt stamps the artifact metadata and footer. It is injected by
	// the caller so rendering stays deterministic.
	CreatedAt time.Time
}

// Section is one heading plus its body text. Newlines in the body are
// preserved as line breaks.
type Section struct {
	Heading string
	Body    string
}

// Artifact is the rendered output. It exists only in memory between render
// and storage.
type Artifact struct {
	Bytes       []byte
	ContentType string
	Pages       int
}

// Page geometry. A4 portrait with uniform margins, in whole millimeters;
// all content advances in uniform line units so page capacity is a whole
// number of lines.
const (
	pageWidthMM  = 210
	pageHeightMM = 297
	marginMM     = 20
	lineHeightMM = 6

	pageWidth  = float64(pageWidthMM)
	pageHeight = float64(pageHeightMM)
	margin     = float64(marginMM)
	lineHeight = float64(lineHeightMM)

	usableWidth = pageWidth - 2*margin

	// LinesPerPage is the number of whole line units that fit between the
	// margins.
	LinesPerPage = (pageHeightMM - 2*marginMM) / lineHeightMM

	titleLines     = 3 // title cell + rule + blank
	headingLines   = 2 // heading cell + blank
	signatureLines = 8 // label row + ink boxes + blank

	signatureBoxWidth  = 70.0
	signatureBoxHeight = 30.0
)

// Renderer produces paginated PDF artifacts from bound documents.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

type inkImage struct {
	name   string
	data   []byte
	width  int
	height int
}

// decodeInk validates a signature image and records its pixel dimensions for
// aspect-preserving placement.
func decodeInk(name string, data []byte) (*inkImage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, renderErr("decode signature image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, renderErr("decode signature image", fmt.Errorf("degenerate image %dx%d", cfg.Width, cfg.Height))
	}
	return &inkImage{name: name, data: data, width: cfg.Width, height: cfg.Height}, nil
}

// ContentLines measures the document in line units, including the padding
// inserted when the signature block would straddle a page boundary. The page
// count of a render is always ceil(ContentLines / LinesPerPage).
func (r *Renderer) ContentLines(doc *Document) int {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	return r.measure(pdf, doc)
}

func (r *Renderer) measure(pdf *fpdf.Fpdf, doc *Document) int {
	lines := titleLines
	for _, sec := range doc.Sections {
		lines += headingLines
		lines += len(pdf.SplitText(sec.Body, usableWidth))
		lines++ // blank after body
	}

	// The signature block never splits across pages; pad to the next page
	// when the remainder cannot hold it.
	remaining := LinesPerPage - lines%LinesPerPage
	if remaining < signatureLines {
		lines += remaining
	}
	lines += signatureLines
	return lines
}

// Render lays the document out and assembles the multi-page PDF. It is
// deterministic for identical content and ink images. Cancelling the context
// abandons the render with no artifact and nothing to undo.
func (r *Renderer) Render(ctx context.Context, doc *Document) (*Artifact, error) {
	doctorInk, err := decodeInk("doctor-ink", doc.DoctorInk)
	if err != nil {
		return nil, err
	}
	patientInk, err := decodeInk("patient-ink", doc.PatientInk)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(doc.CreatedAt)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 11)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	line := 0
	newPage := func() {
		pdf.AddPage()
		line = 0
	}
	// advance moves to the next line unit, breaking the page when full.
	advance := func(n int) {
		line += n
		for line >= LinesPerPage {
			line -= LinesPerPage
			newPage()
		}
	}
	y := func() float64 { return margin + float64(line)*lineHeight }

	newPage()

	// Title
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(margin, y())
	pdf.CellFormat(usableWidth, lineHeight, tr(doc.Title), "", 0, "C", false, 0, "")
	advance(1)
	pdf.Line(margin, y()+lineHeight/2, pageWidth-margin, y()+lineHeight/2)
	advance(titleLines - 1)

	for _, sec := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, renderErr("layout", err)
		}

		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetXY(margin, y())
		pdf.CellFormat(usableWidth, lineHeight, tr(sec.Heading), "", 0, "L", false, 0, "")
		advance(headingLines)

		pdf.SetFont("Helvetica", "", 11)
		for _, txt := range pdf.SplitText(sec.Body, usableWidth) {
			pdf.SetXY(margin, y())
			pdf.CellFormat(usableWidth, lineHeight, tr(txt), "", 0, "L", false, 0, "")
			advance(1)
		}
		advance(1) // blank after body
	}

	// Signature block, kept on one page.
	if LinesPerPage-line < signatureLines {
		newPage()
	}
	if err := r.drawSignatures(pdf, tr, y(), doctorInk, patientInk); err != nil {
		return nil, err
	}

	// Footer date on the last page.
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetXY(margin, pageHeight-margin)
	pdf.CellFormat(usableWidth, lineHeight, doc.CreatedAt.Format("02/01/2006"), "", 0, "R", false, 0, "")

	if err := ctx.Err(); err != nil {
		return nil, renderErr("assemble", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, renderErr("assemble", err)
	}

	return &Artifact{
		Bytes:       buf.Bytes(),
		ContentType: "application/pdf",
		Pages:       pdf.PageCount(),
	}, nil
}

// drawSignatures renders the two labeled signature boxes side by side,
// embedding each provided ink image scaled into its box with the aspect
// ratio preserved. An absent image leaves the box empty.
func (r *Renderer) drawSignatures(pdf *fpdf.Fpdf, tr func(string) string, top float64, doctor, patient *inkImage) error {
	boxTop := top + lineHeight

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(margin, top)
	pdf.CellFormat(signatureBoxWidth, lineHeight, tr("Firma del médico"), "", 0, "L", false, 0, "")
	pdf.SetXY(pageWidth-margin-signatureBoxWidth, top)
	pdf.CellFormat(signatureBoxWidth, lineHeight, tr("Firma del paciente"), "", 0, "L", false, 0, "")

	pdf.Rect(margin, boxTop, signatureBoxWidth, signatureBoxHeight, "D")
	pdf.Rect(pageWidth-margin-signatureBoxWidth, boxTop, signatureBoxWidth, signatureBoxHeight, "D")

	if doctor != nil {
		if err := r.placeInk(pdf, doctor, margin, boxTop); err != nil {
			return err
		}
	}
	if patient != nil {
		if err := r.placeInk(pdf, patient, pageWidth-margin-signatureBoxWidth, boxTop); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) placeInk(pdf *fpdf.Fpdf, ink *inkImage, boxX, boxY float64) error {
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(ink.name, opts, bytes.NewReader(ink.data))
	if pdf.Err() {
		return renderErr("embed signature image", pdf.Error())
	}

	// Fit inside the box with a small inset, preserving aspect ratio.
	const inset = 2.0
	maxW := signatureBoxWidth - 2*inset
	maxH := signatureBoxHeight - 2*inset
	w := maxW
	h := w * float64(ink.height) / float64(ink.width)
	if h > maxH {
		h = maxH
		w = h * float64(ink.width) / float64(ink.height)
	}
	x := boxX + (signatureBoxWidth-w)/2
	y := boxY + (signatureBoxHeight-h)/2
	pdf.ImageOptions(ink.name, x, y, w, h, false, opts, 0, "")
	if pdf.Err() {
		return renderErr("embed signature image", pdf.Error())
	}
	return nil
}
