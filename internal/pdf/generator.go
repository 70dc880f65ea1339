package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/adilbekov/handcarry-orders/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders the receipt for a captured escrow payment.
func (g *Generator) Generate(p model.Payment, o model.Order) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, "Delivery payment receipt", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Receipt for payment %s", p.ID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s", formatDate(time.Now().UTC())), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	addPartyBlock(pdf, g.fontName, "Sender", o.SenderID.String())
	pdf.Ln(2)
	addPartyBlock(pdf, g.fontName, "Carrier", o.CarrierID.String())
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Payment details", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)

	headers := []string{"Item", "Amount, RUB"}
	colWidths := []float64{110, 60}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)
	drawTableRow(pdf, g.fontName, []string{"Carrier reward", formatAmount(o.Reward * 100)}, colWidths, false)
	drawTableRow(pdf, g.fontName, []string{"Platform fee", formatAmount(o.PlatformFee * 100)}, colWidths, false)
	drawTableRow(pdf, g.fontName, []string{"Total charged", formatAmount(p.AmountMinor)}, colWidths, false)

	pdf.Ln(4)
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Provider: %s", p.Provider), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Provider payment id: %s", p.ProviderID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Order: %s", o.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s", p.Status), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addPartyBlock(pdf *gofpdf.Fpdf, fontName, title, id string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf("ID: %s", id), "", "L", false)
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func formatAmount(amountMinor int64) string {
	return fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100)
}

func formatDate(t time.Time) string {
	return t.Format("02.01.2006")
}
