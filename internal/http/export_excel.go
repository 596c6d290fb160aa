package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"lora-envmon/internal/models"
)

const readingsSheet = "Readings"

// ReadingsExportHeader 读数导出表头
var ReadingsExportHeader = []string{
	"Timestamp (UTC)",
	"Node ID",
	"Gateway ID",
	"Temperature (°C)",
	"Humidity (%)",
	"Distance (cm)",
	"Luminosity (lux)",
	"Presence",
	"Battery (%)",
	"RSSI (dBm)",
	"SNR (dB)",
}

var readingsColumnWidths = []float64{22, 15, 12, 18, 14, 14, 16, 10, 12, 12, 10}

// GenerateReadingsExport 生成读数导出 Excel 文件（顺序与传入一致）
// 空字段留空单元格
func GenerateReadingsExport(readings []models.Reading) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前不能 Close

	index, err := f.NewSheet(readingsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ReadingsExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(readingsSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(readingsSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range readingsColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(readingsSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, r := range readings {
		row := rowIdx + 2 // 第1行是表头
		for colIdx, value := range readingRow(r) {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(readingsSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, colIdx+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(readingsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel: %w", err)
	}
	return buf.Bytes(), nil
}

// readingRow 按表头顺序返回单元格值；nil 表示留空
func readingRow(r models.Reading) []any {
	row := make([]any, len(ReadingsExportHeader))
	row[0] = r.Timestamp.UTC().Format(time.RFC3339)
	row[1] = r.NodeID
	if r.GatewayID != nil {
		row[2] = *r.GatewayID
	}
	if r.Temperature != nil {
		row[3] = *r.Temperature
	}
	if r.Humidity != nil {
		row[4] = *r.Humidity
	}
	if r.Distance != nil {
		row[5] = *r.Distance
	}
	if r.Luminosity != nil {
		row[6] = *r.Luminosity
	}
	if r.Presence != nil {
		if *r.Presence {
			row[7] = "Yes"
		} else {
			row[7] = "No"
		}
	}
	if r.Battery != nil {
		row[8] = *r.Battery
	}
	if r.RSSI != nil {
		row[9] = *r.RSSI
	}
	if r.SNR != nil {
		row[10] = *r.SNR
	}
	return row
}
