package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/adilbekov/handcarry-orders/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds the admin orders ledger: one row per order with its most
// recent payment attempt.
func (g *Generator) Generate(rows []model.OrderLedgerRow) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "Orders"
	file.SetSheetName("Sheet1", sheet)

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Order ID", "Task ID", "Sender ID", "Carrier ID", "Status",
		"Reward", "Platform fee", "Total", "Provider", "Payment status", "Payment amount (minor)",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		set(cell, header)
	}

	for i, row := range rows {
		rowNum := i + 2
		set(fmt.Sprintf("A%d", rowNum), row.ID.String())
		set(fmt.Sprintf("B%d", rowNum), row.TaskID.String())
		set(fmt.Sprintf("C%d", rowNum), row.SenderID.String())
		set(fmt.Sprintf("D%d", rowNum), row.CarrierID.String())
		set(fmt.Sprintf("E%d", rowNum), string(row.Status))
		set(fmt.Sprintf("F%d", rowNum), row.Reward)
		set(fmt.Sprintf("G%d", rowNum), row.PlatformFee)
		set(fmt.Sprintf("H%d", rowNum), row.TotalAmount)
		if row.PaymentProvider != nil {
			set(fmt.Sprintf("I%d", rowNum), *row.PaymentProvider)
		}
		if row.PaymentStatus != nil {
			set(fmt.Sprintf("J%d", rowNum), *row.PaymentStatus)
		}
		if row.PaymentAmount != nil {
			set(fmt.Sprintf("K%d", rowNum), *row.PaymentAmount)
		}
	}

	_ = file.SetColWidth(sheet, "A", "D", 38)
	_ = file.SetColWidth(sheet, "E", "K", 16)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
