package models

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// StoreComplianceRow summarizes answered items per store over a date range.
type StoreComplianceRow struct {
	StoreId         int             `json:"store_id"`
	StoreName       string          `json:"store_name"`
	AnsweredItems   int             `json:"answered_items"`
	ConformingItems int             `json:"conforming_items"`
	ComplianceRate  decimal.Decimal `json:"compliance_rate" gorm:"-"`
}

type ComplianceReportFilter struct {
	StoreId  int
	FromDate *time.Time
	ToDate   *time.Time
}

// GetComplianceReport computes each store's share of conforming answers.
// The rate is a percentage with two decimal places.
func GetComplianceReport(ctx context.Context, filter ComplianceReportFilter) ([]*StoreComplianceRow, error) {

	if filter.StoreId != 0 {
		if err := checkStoreScope(ctx, filter.StoreId); err != nil {
			return nil, err
		}
	} else {
		if err := RequireAdmin(ctx); err != nil {
			return nil, err
		}
	}

	query := `SELECT c.store_id, s.name AS store_name,
	                 COUNT(i.id) AS answered_items,
	                 SUM(CASE WHEN i.status = ? THEN 1 ELSE 0 END) AS conforming_items
	          FROM checklist_items i
	          JOIN checklists c ON c.id = i.checklist_id
	          JOIN stores s ON s.id = c.store_id
	          WHERE i.status <> ''`
	args := []interface{}{ItemStatusConforming}
	if filter.StoreId != 0 {
		query += ` AND c.store_id = ?`
		args = append(args, filter.StoreId)
	}
	if filter.FromDate != nil {
		query += ` AND c.date >= ?`
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		query += ` AND c.date <= ?`
		args = append(args, *filter.ToDate)
	}
	query += ` GROUP BY c.store_id, s.name ORDER BY s.name ASC`

	db := config.GetDB()
	var rows []*StoreComplianceRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	for _, row := range rows {
		if row.AnsweredItems > 0 {
			row.ComplianceRate = decimal.NewFromInt(int64(row.ConformingItems)).
				Div(decimal.NewFromInt(int64(row.AnsweredItems))).
				Mul(hundred).Round(2)
		} else {
			row.ComplianceRate = decimal.Zero
		}
	}
	return rows, nil
}

// LessonLearnedRow is one recurring non-conformance with its streak and band.
type LessonLearnedRow struct {
	StoreId         int          `json:"store_id"`
	StoreName       string       `json:"store_name"`
	ItemDescription string       `json:"item_description"`
	Count           int          `json:"count"`
	LastFailedAt    *time.Time   `json:"last_failed_at"`
	Severity        SeverityBand `json:"severity" gorm:"-"`
}

// GetLessonsLearned lists recurring non-conformances, worst streak first.
// storeId zero means all stores (admin only).
func GetLessonsLearned(ctx context.Context, storeId int) ([]*LessonLearnedRow, error) {

	if storeId != 0 {
		if err := checkStoreScope(ctx, storeId); err != nil {
			return nil, err
		}
	} else {
		if err := RequireAdmin(ctx); err != nil {
			return nil, err
		}
	}

	query := `SELECT r.store_id, s.name AS store_name, r.item_description,
	                 r.count, r.last_failed_at
	          FROM item_recurrences r
	          JOIN stores s ON s.id = r.store_id
	          WHERE r.count > 0`
	args := []interface{}{}
	if storeId != 0 {
		query += ` AND r.store_id = ?`
		args = append(args, storeId)
	}
	query += ` ORDER BY r.count DESC, r.last_failed_at DESC`

	db := config.GetDB()
	var rows []*LessonLearnedRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		row.Severity = SeverityForCount(row.Count)
	}
	return rows, nil
}

// ExportLessonsLearnedExcel writes the lessons report as an xlsx workbook.
func ExportLessonsLearnedExcel(ctx context.Context, storeId int, w io.Writer) error {

	rows, err := GetLessonsLearned(ctx, storeId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Store")
	f.SetCellValue(sheetName, "B1", "Item")
	f.SetCellValue(sheetName, "C1", "Recurrences")
	f.SetCellValue(sheetName, "D1", "Severity")
	f.SetCellValue(sheetName, "E1", "LastFailedAt")

	// Add data
	for i, row := range rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), row.StoreName)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), row.ItemDescription)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), row.Count)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), string(row.Severity))
		if row.LastFailedAt != nil {
			f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), row.LastFailedAt.Format("2006-01-02 15:04"))
		}
	}

	return f.Write(w)
}
