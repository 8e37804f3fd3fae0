package report

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/eckplanogram/internal/models"
)

// LabelConfig holds the sheet geometry for shelf labels
type LabelConfig struct {
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	MarginTop  float64 `json:"marginTop"`
	MarginLeft float64 `json:"marginLeft"`
	GapX       float64 `json:"gapX"`
	GapY       float64 `json:"gapY"`
}

// DefaultLabelConfig is a 3x8 sheet
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 8, GapX: 3, GapY: 2}
}

// ShelfURL is encoded into a shelf label; scanning it opens the template at that row
func ShelfURL(baseURL, templateID, rowID string) string {
	return TemplateURL(baseURL, templateID) + "?row=" + url.QueryEscape(rowID)
}

// GenerateShelfLabelsPDF prints one QR label per shelf row of the committed layout
func GenerateShelfLabelsPDF(tmpl *models.PlanogramTemplate, baseURL string, cfg LabelConfig) ([]byte, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("template is required")
	}
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		return nil, fmt.Errorf("label grid must have at least one column and row")
	}

	rows := tmpl.CurrentLayout()
	if len(rows) == 0 {
		return nil, fmt.Errorf("template has no shelf rows")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := 210.0, 297.0
	labelW := (pageW - cfg.MarginLeft*2 - float64(cfg.Cols-1)*cfg.GapX) / float64(cfg.Cols)
	labelH := (pageH - cfg.MarginTop*2 - float64(cfg.Rows-1)*cfg.GapY) / float64(cfg.Rows)
	perPage := cfg.Cols * cfg.Rows

	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}

	for i, row := range rows {
		if i%perPage == 0 {
			pdf.AddPage()
		}

		onPage := i % perPage
		x := cfg.MarginLeft + float64(onPage%cfg.Cols)*(labelW+cfg.GapX)
		y := cfg.MarginTop + float64(onPage/cfg.Cols)*(labelH+cfg.GapY)

		qrPng, err := qrcode.Encode(ShelfURL(baseURL, tmpl.ID, row.ID), qrcode.Low, 256)
		if err != nil {
			return nil, err
		}
		imgName := fmt.Sprintf("shelf_%d", i)
		pdf.RegisterImageOptionsReader(imgName, imgOptions, bytes.NewReader(qrPng))

		// QR on the left, text on the right
		qrSize := labelH * 0.85
		if qrSize > labelW*0.45 {
			qrSize = labelW * 0.45
		}
		pdf.ImageOptions(imgName, x+1, y+(labelH-qrSize)/2, qrSize, qrSize, false, imgOptions, 0, "")

		textX := x + qrSize + 3
		textW := labelW - qrSize - 4

		pdf.SetXY(textX, y+3)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(textW, 5, tr(truncate(row.Label, 22)), "", 2, "L", false, 0, "")

		pdf.SetFont("Arial", "", 7)
		pdf.CellFormat(textW, 4, tr(truncate(tmpl.Name, 28)), "", 2, "L", false, 0, "")
		if cm, ok := row.Width.Centimeters(); ok {
			pdf.CellFormat(textW, 4, fmt.Sprintf("%.0f cm", cm), "", 2, "L", false, 0, "")
		}
		facings := 0
		for _, p := range row.Placements {
			facings += p.Facings
		}
		pdf.CellFormat(textW, 4, fmt.Sprintf("%d facings", facings), "", 2, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
