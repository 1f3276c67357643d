// Package receipt renders an xlsx receipt for every recorded submission.
package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/event"
)

const sheetName = "Receipt"

// Writer fills a one-sheet workbook with the submitted record and stores it
// as <trackingId>.xlsx
type Writer struct {
	files  port.FileStorage
	logger *zap.Logger
}

// NewWriter creates a receipt writer
func NewWriter(files port.FileStorage, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{files: files, logger: logger}
}

// Row is one label/value line of the receipt body
type Row struct {
	Label string
	Value string
}

// Flatten lists every leaf of record as a dotted label. Arrays of objects
// are summarized by their name fields.
func Flatten(record []byte) []Row {
	var rows []Row
	var walk func(prefix string, v gjson.Result)
	walk = func(prefix string, v gjson.Result) {
		switch {
		case v.IsObject():
			v.ForEach(func(k, child gjson.Result) bool {
				label := k.String()
				if prefix != "" {
					label = prefix + "." + label
				}
				walk(label, child)
				return true
			})
		case v.IsArray():
			var parts []string
			for _, item := range v.Array() {
				if item.IsObject() {
					if name := item.Get("name"); name.Exists() {
						parts = append(parts, name.String())
						continue
					}
					parts = append(parts, item.Raw)
					continue
				}
				parts = append(parts, item.String())
			}
			rows = append(rows, Row{Label: prefix, Value: strings.Join(parts, ", ")})
		default:
			rows = append(rows, Row{Label: prefix, Value: v.String()})
		}
	}
	doc := gjson.ParseBytes(record)
	if !doc.IsObject() {
		return nil
	}
	walk("", doc)
	return rows
}

// Total formats the record's amount with two decimals and its currency.
// ok is false when the record carries no parseable amount.
func Total(record []byte) (string, bool) {
	raw := gjson.GetBytes(record, "amount")
	if !raw.Exists() || raw.String() == "" {
		return "", false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw.String()))
	if err != nil {
		return "", false
	}
	total := amount.StringFixed(2)
	if currency := gjson.GetBytes(record, "currency").String(); currency != "" {
		total += " " + currency
	}
	return total, true
}

// Render builds the workbook bytes
func (w *Writer) Render(trackingID string, submittedAt time.Time, record []byte) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	w.setCell(f, "A1", "Tracking ID")
	w.setCell(f, "B1", trackingID)
	w.setCell(f, "A2", "Submitted at")
	w.setCell(f, "B2", submittedAt.UTC().Format(time.RFC3339))

	row := 3
	if total, ok := Total(record); ok {
		w.setCell(f, "A3", "Total")
		w.setCell(f, "B3", total)
		row++
	}
	row++

	w.setCell(f, cell("A", row), "Field")
	w.setCell(f, cell("B", row), "Value")
	for _, r := range Flatten(record) {
		row++
		w.setCell(f, cell("A", row), r.Label)
		w.setCell(f, cell("B", row), r.Value)
	}

	if err := f.SetColWidth(sheetName, "A", "A", 36); err != nil {
		w.logger.Warn("Failed to size column", zap.Error(err))
	}
	if err := f.SetColWidth(sheetName, "B", "B", 60); err != nil {
		w.logger.Warn("Failed to size column", zap.Error(err))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// setCell sets a cell value in the receipt sheet
func (w *Writer) setCell(f *excelize.File, ref, value string) {
	if err := f.SetCellValue(sheetName, ref, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("cell", ref),
			zap.Error(err))
	}
}

// Path is the storage path of the receipt for trackingID
func Path(trackingID string) string {
	return trackingID + ".xlsx"
}

// Handle is a dispatcher handler for request.submitted events
func (w *Writer) Handle(ctx context.Context, evt *event.Event) error {
	trackingID := evt.GetPayloadString("trackingId")
	if trackingID == "" {
		return fmt.Errorf("submitted event %s has no tracking id", evt.ID)
	}

	submittedAt := evt.Timestamp
	if ts, err := time.Parse(time.RFC3339, evt.GetPayloadString("submittedAt")); err == nil {
		submittedAt = ts
	}

	content, err := w.Render(trackingID, submittedAt, evt.GetPayloadBytes("record"))
	if err != nil {
		return err
	}
	if err := w.files.Save(ctx, Path(trackingID), content); err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}

	w.logger.Info("Receipt written",
		zap.String("tracking_id", trackingID),
		zap.String("path", w.files.GetFullPath(Path(trackingID))))
	return nil
}
