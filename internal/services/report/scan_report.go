package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/eckplanogram/internal/compliance"
	"github.com/xelth-com/eckplanogram/internal/models"
)

const (
	pageWidth  = 210.0
	pageMargin = 15.0
)

// TemplateURL is the designer page a report or shelf label points to
func TemplateURL(baseURL, templateID string) string {
	return fmt.Sprintf("%s/planograms/%s", baseURL, templateID)
}

// GenerateScanReportPDF renders one scan verdict as an A4 page
func GenerateScanReportPDF(tmpl *models.PlanogramTemplate, scan *models.ComplianceScan, baseURL string) ([]byte, error) {
	if tmpl == nil || scan == nil {
		return nil, fmt.Errorf("template and scan are required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Shelf compliance report"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Planogram: %s", tmpl.Name)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Scanned: %s UTC", scan.CreatedAt.UTC().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	if scan.Detector != "" {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Detector: %s", scan.Detector)), "", 1, "L", false, 0, "")
	}

	// QR to the template, top right
	qrPng, err := qrcode.Encode(TemplateURL(baseURL, tmpl.ID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("template_qr", imgOptions, bytes.NewReader(qrPng))
	qrSize := 30.0
	pdf.ImageOptions("template_qr", pageWidth-pageMargin-qrSize, pageMargin, qrSize, qrSize, false, imgOptions, 0, "")

	// Score
	pdf.SetY(pageMargin + qrSize + 5)
	pdf.SetFont("Arial", "B", 28)
	r, g, b := scoreColor(scan.ComplianceScore)
	pdf.SetTextColor(r, g, b)
	pdf.CellFormat(0, 14, fmt.Sprintf("%d%%", scan.ComplianceScore), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Arial", "", 10)
	totals := fmt.Sprintf("Expected %d   Found %d   Missing %d   Extra %d",
		scan.TotalExpected, scan.TotalFound, scan.TotalMissing, scan.TotalExtra)
	pdf.CellFormat(0, 7, totals, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Detail table
	widths := []float64{80, 25, 25, 50}
	headers := []string{"Product", "Expected", "Found", "Status"}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, d := range scan.Details.Data() {
		name := d.ProductName
		if d.MatchedLabel != "" && d.MatchedLabel != d.ProductName {
			name = fmt.Sprintf("%s (%s)", d.ProductName, d.MatchedLabel)
		}
		pdf.CellFormat(widths[0], 7, tr(truncate(name, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", d.ExpectedCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%d", d.ActualCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, statusText(d.Status), "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scoreColor(score int) (int, int, int) {
	switch {
	case score >= 90:
		return 30, 140, 60
	case score >= 60:
		return 210, 140, 0
	default:
		return 200, 30, 30
	}
}

func statusText(s compliance.Status) string {
	switch s {
	case compliance.StatusCompliant:
		return "Compliant"
	case compliance.StatusPartial:
		return "Partial"
	default:
		return "Missing"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
