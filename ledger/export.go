package ledger

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/lot-ledger/inventory"
)

// XLSXContentType is the media type of ExportTransactions output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const exportSheet = "Transactions"

var exportHeaders = []string{
	"Date", "Transaction", "Lot", "Seller", "Customer", "Invoice",
	"Color", "Size", "Quantity", "Price per piece", "Line total", "Transaction total",
}

// ExportTransactions writes every transaction matching q (pagination is
// ignored) as an xlsx workbook, one row per sold line.
func (e *Engine) ExportTransactions(ctx context.Context, tenantID inventory.TenantID, q TransactionQuery, w io.Writer) error {
	log := e.tenantLog(tenantID)

	views, _, err := e.store.ListTransactions(ctx, tenantID, q.filter())
	if err != nil {
		return e.fail(log, "export transactions", err)
	}

	f, err := buildWorkbook(views)
	if err != nil {
		return e.fail(log, "export transactions", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return e.fail(log, "export transactions", fmt.Errorf("write workbook: %w", err))
	}
	return nil
}

func buildWorkbook(views []*inventory.TransactionView) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, style); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	row := 2
	for _, v := range views {
		for _, item := range v.Items {
			values := []any{
				v.CreatedAt.Format("2006-01-02 15:04:05"),
				string(v.ID),
				v.LotNumber,
				v.SellerName,
				v.CustomerName,
				v.InvoiceNumber,
				item.Color,
				item.Size,
				item.Quantity,
				item.SellPricePerPiece.InexactFloat64(),
				item.Total.InexactFloat64(),
				v.TotalAmount.InexactFloat64(),
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
				return nil, fmt.Errorf("set row %d: %w", row, err)
			}
			row++
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "L", 16); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return f, nil
}
