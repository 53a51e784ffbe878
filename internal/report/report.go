package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"crashanalytix-console/internal/model"
)

const (
	title  = "CrashAnalytix Accident Report"
	footer = "Generated by | CrashAnalytiX"
	margin = 20.0
)

var (
	headingColor = model.RGB{0, 51, 102}
	bodyColor    = model.RGB{70, 70, 70}
	valueColor   = model.RGB{40, 40, 40}
	alertColor   = model.RGB{204, 0, 0}
	dividerColor = model.RGB{180, 180, 180}
	panelColor   = model.RGB{245, 245, 245}
)

// Snapshot is an optional JPEG collage printed in the report.
type Snapshot struct {
	JPEG []byte
}

// Filename is the download name of a report generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("crashanalytix_report_%d.pdf", t.UnixMilli())
}

// Write renders the accident report for view to w. A nil or empty snapshot
// prints a placeholder panel.
func Write(w io.Writer, view model.ProcessedAccidentView, snapshot *Snapshot) error {
	return render(newDocument(), w, view, snapshot)
}

func newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("crashanalytix-console", true)
	return pdf
}

func render(pdf *fpdf.Fpdf, w io.Writer, view model.ProcessedAccidentView, snapshot *Snapshot) error {
	// core fonts are cp1252; detector values are UTF-8
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 2*margin
	y := 15.0

	// header
	setText(pdf, headingColor)
	pdf.SetFont("Helvetica", "B", 20)
	centered(pdf, pageWidth, y, title)
	y += 12
	divider(pdf, pageWidth, y)
	y += 8

	// summary
	panel(pdf, margin, y, contentWidth, 22)
	setText(pdf, headingColor)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(margin+5, y+7, "REPORT SUMMARY")
	setText(pdf, bodyColor)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(margin+5, y+13, tr("Timestamp: "+view.Timestamp))
	pdf.Text(margin+5, y+18, tr("Classification: "+view.Classification))
	y += 30

	// severity
	style := model.StyleFor(view.Severity)
	setText(pdf, headingColor)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(margin, y, "SEVERITY ASSESSMENT")
	y += 12

	setText(pdf, style.RGB)
	pdf.SetFont("Helvetica", "B", 28)
	centered(pdf, pageWidth, y, tr(model.Capitalize(displaySeverity(view.Severity))))
	y += 6

	barHeight := 8.0
	zones := []struct {
		share float64
		color model.RGB
	}{
		{0.3, model.RGB{0, 153, 51}},
		{0.3, model.RGB{255, 204, 0}},
		{0.4, alertColor},
	}
	x := margin
	for _, zone := range zones {
		setFill(pdf, zone.color)
		pdf.Rect(x, y, contentWidth*zone.share, barHeight, "F")
		x += contentWidth * zone.share
	}
	setFill(pdf, model.RGB{51, 51, 51})
	pdf.Rect(margin+contentWidth*style.Marker-1, y-2, 2, barHeight+4, "F")
	y += barHeight + 5

	setText(pdf, bodyColor)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(margin, y, "Low Risk")
	pdf.Text(pageWidth-margin-pdf.GetStringWidth("High Risk"), y, "High Risk")
	y += 10
	divider(pdf, pageWidth, y)
	y += 8

	// incident details
	rows := []struct {
		label, value string
		alert        bool
	}{
		{"Entities Involved", view.EntitiesLine(), false},
		{"Vehicles", vehiclesLine(view), false},
		{"Accident Type", view.AccidentType, false},
		{"License Plates", view.PlatesLine(), true},
	}
	panel(pdf, margin, y, contentWidth, 20+float64(len(rows))*8)
	setText(pdf, headingColor)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(margin+5, y+7, "INCIDENT DETAILS")
	y += 10

	setFill(pdf, model.RGB{235, 235, 235})
	pdf.Rect(margin, y, contentWidth, 10, "F")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(margin+5, y+7, "Category")
	pdf.Text(margin+70, y+7, "Details")
	y += 10

	for i, row := range rows {
		if i%2 == 0 {
			setFill(pdf, model.RGB{250, 250, 250})
			pdf.Rect(margin, y, contentWidth, 8, "F")
		}
		pdf.SetFont("Helvetica", "", 9)
		labelColor, rowColor := bodyColor, valueColor
		if row.alert {
			labelColor, rowColor = alertColor, alertColor
		}
		setText(pdf, labelColor)
		pdf.Text(margin+5, y+5.5, row.label)
		setText(pdf, rowColor)
		pdf.Text(margin+70, y+5.5, tr(row.value))
		y += 8
	}
	y += 12

	// snapshot
	setText(pdf, headingColor)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(margin, y, "ACCIDENT SNAPSHOT")
	y += 8

	imgWidth := contentWidth * 0.8
	imgHeight := imgWidth * 9 / 16
	imgX := (pageWidth - imgWidth) / 2
	const padding = 4.0

	setDraw(pdf, dividerColor)
	pdf.SetLineWidth(0.8)
	pdf.Rect(imgX-padding, y-padding+4, imgWidth+2*padding, imgHeight+2*padding, "D")
	pdf.SetLineWidth(0.2)
	drawSnapshot(pdf, snapshot, imgX, y+4, imgWidth, imgHeight)
	y += imgHeight + 2*padding + 9

	// footer
	divider(pdf, pageWidth, y)
	setText(pdf, model.RGB{100, 100, 100})
	pdf.SetFont("Helvetica", "", 10)
	centered(pdf, pageWidth, y+10, footer)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return pdf.Output(w)
}

// Render is Write into a buffer.
func Render(view model.ProcessedAccidentView, snapshot *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, view, snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawSnapshot(pdf *fpdf.Fpdf, snapshot *Snapshot, x, y, w, h float64) {
	if snapshot != nil && len(snapshot.JPEG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "JPG"}
		info := pdf.RegisterImageOptionsReader("snapshot", opts, bytes.NewReader(snapshot.JPEG))
		if info != nil && pdf.Ok() {
			pdf.ImageOptions("snapshot", x, y, w, h, false, opts, 0, "")
			return
		}
		// an unreadable collage falls back to the placeholder
		pdf.ClearError()
	}

	setFill(pdf, model.RGB{225, 225, 225})
	pdf.Rect(x, y, w, h, "F")
	setText(pdf, model.RGB{120, 120, 120})
	pdf.SetFont("Helvetica", "I", 11)
	label := "Snapshot not available"
	pdf.Text(x+(w-pdf.GetStringWidth(label))/2, y+h/2, label)
}

func vehiclesLine(view model.ProcessedAccidentView) string {
	if view.Vehicles.Count == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%s)", view.Vehicles.Count, strings.Join(view.Vehicles.Types, ", "))
}

func displaySeverity(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return string(model.DefaultSeverity)
	}
	return raw
}

func centered(pdf *fpdf.Fpdf, pageWidth, y float64, text string) {
	pdf.Text((pageWidth-pdf.GetStringWidth(text))/2, y, text)
}

func divider(pdf *fpdf.Fpdf, pageWidth, y float64) {
	setDraw(pdf, dividerColor)
	pdf.Line(margin, y, pageWidth-margin, y)
}

func panel(pdf *fpdf.Fpdf, x, y, w, h float64) {
	setDraw(pdf, model.RGB{210, 210, 210})
	setFill(pdf, panelColor)
	pdf.RoundedRect(x, y, w, h, 4, "1234", "FD")
}

func setText(pdf *fpdf.Fpdf, c model.RGB) { pdf.SetTextColor(c[0], c[1], c[2]) }
func setFill(pdf *fpdf.Fpdf, c model.RGB) { pdf.SetFillColor(c[0], c[1], c[2]) }
func setDraw(pdf *fpdf.Fpdf, c model.RGB) { pdf.SetDrawColor(c[0], c[1], c[2]) }
