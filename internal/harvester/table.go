package harvester

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/models"
	"github.com/mjanez/ckan-ogc/pkg/utils"
)

// Sheet names recognized in spreadsheet sources.
const (
	sheetDataset        = "Dataset"
	sheetDistribution   = "Distribution"
	sheetDataDictionary = "DataDictionary"
)

// resourcePrefix marks dataset columns that describe the record's inline
// distribution.
const resourcePrefix = "resource_"

// listFields are the record fields whose cell values are comma-separated.
var listFields = map[string]bool{
	FieldKeywords:        true,
	FieldKeywordURIs:     true,
	FieldTheme:           true,
	FieldConformance:     true,
	FieldReference:       true,
	FieldKeywordThesauri: true,
	FieldLineageSource:   true,
}

// tableHarvester reads dataset rows from a delimited file or an Excel
// workbook. Column headers name the record fields.
type tableHarvester struct {
	*base
	deps Deps
}

func newTableHarvester(src *config.Source, deps Deps) (*tableHarvester, error) {
	b, err := newBase(src, deps)
	if err != nil {
		return nil, err
	}

	return &tableHarvester{base: b, deps: deps}, nil
}

func (h *tableHarvester) SourceName() string {
	return h.src.Name
}

func (h *tableHarvester) Harvest(ctx context.Context) ([]*models.Dataset, error) {
	data, err := h.readSource(ctx)
	if err != nil {
		return nil, err
	}

	var records []*RawRecord
	switch {
	case strings.Contains(strings.ToLower(h.src.URL), ".xls"):
		records, err = h.parseWorkbook(data)
	default:
		records, err = h.parseDelimited(data)
	}
	if err != nil {
		return nil, err
	}

	var datasets []*models.Dataset
	for _, rec := range records {
		if !h.wanted(rec) {
			h.log.Debug("skipping row outside source constraints",
				"identifier", rec.Get(FieldIdentifier, ""))
			continue
		}
		datasets = append(datasets, h.buildDataset(rec))
	}

	h.log.Info("source harvested", "datasets", len(datasets))
	return datasets, nil
}

func (h *tableHarvester) readSource(ctx context.Context) ([]byte, error) {
	if utils.IsValidURL(h.src.URL) {
		return fetch(ctx, h.deps.Client, h.src.URL)
	}

	data, err := os.ReadFile(h.src.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read table source: %w", err)
	}

	return data, nil
}

// parseDelimited reads CSV or TSV rows, sniffing the delimiter from the
// header line.
func (h *tableHarvester) parseDelimited(data []byte) ([]*RawRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	if bytes.Contains(bytes.SplitN(data, []byte("\n"), 2)[0], []byte("\t")) {
		reader.Comma = '\t'
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse table source: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	return h.rowsToRecords(rows), nil
}

func (h *tableHarvester) parseWorkbook(data []byte) ([]*RawRecord, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheet := sheetDataset
	if !hasSheet(book, sheet) {
		sheet = book.GetSheetName(0)
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	records := h.rowsToRecords(rows)
	index := indexByIdentifier(records)

	h.attachDistributionSheet(book, index)
	h.attachDictionarySheet(book, index)

	return records, nil
}

func hasSheet(book *excelize.File, name string) bool {
	for _, s := range book.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

func indexByIdentifier(records []*RawRecord) map[string]*RawRecord {
	index := make(map[string]*RawRecord, len(records))
	for _, rec := range records {
		if id := rec.Get(FieldIdentifier, ""); id != "" {
			index[id] = rec
		}
	}
	return index
}

// rowsToRecords converts header plus data rows into raw records. Columns
// with the resource_ prefix populate one inline distribution per row.
func (h *tableHarvester) rowsToRecords(rows [][]string) []*RawRecord {
	headers := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(cell))
	}

	var records []*RawRecord
	for _, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}

		rec := NewRawRecord()
		dist := &RawDistribution{}

		for i, cell := range row {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}

			header := headers[i]
			if strings.HasPrefix(header, resourcePrefix) {
				applyDistributionCell(dist, strings.TrimPrefix(header, resourcePrefix), cell)
				continue
			}

			if listFields[header] {
				rec.Set(header, utils.SplitAndTrim(cell, ","))
			} else {
				rec.Set(header, cell)
			}
		}

		if dist.URL != "" {
			rec.AddDistribution(dist)
		}
		records = append(records, rec)
	}

	return records
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func applyDistributionCell(dist *RawDistribution, column, value string) {
	switch column {
	case "url":
		dist.URL = value
	case "name":
		dist.Name = value
	case "format":
		dist.Format = value
	case "description":
		dist.Description = value
	case "language":
		dist.Language = value
	case "license":
		dist.License = value
	case "license_id":
		dist.LicenseID = value
	case "rights":
		dist.Rights = value
	case "protocol":
		dist.Protocol = value
	}
}

// attachDistributionSheet adds the extra distributions of the Distribution
// sheet to the datasets they reference.
func (h *tableHarvester) attachDistributionSheet(book *excelize.File, index map[string]*RawRecord) {
	if !hasSheet(book, sheetDistribution) {
		return
	}

	rows, err := book.GetRows(sheetDistribution)
	if err != nil || len(rows) < 2 {
		return
	}

	headers := rows[0]
	for _, row := range rows[1:] {
		cells := cellMap(headers, row)
		rec, ok := index[cells["dataset_identifier"]]
		if !ok {
			h.log.Warn("distribution row references unknown dataset",
				"dataset_identifier", cells["dataset_identifier"])
			continue
		}
		if cells["url"] == "" {
			continue
		}

		rec.AddDistribution(&RawDistribution{
			URL:         cells["url"],
			Name:        cells["name"],
			Format:      cells["format"],
			Description: cells["description"],
			Language:    cells["language"],
			License:     cells["license"],
			LicenseID:   cells["license_id"],
			Rights:      cells["rights"],
		})
	}
}

// attachDictionarySheet attaches column descriptions to the distribution
// they document, matched by dataset identifier and resource name.
func (h *tableHarvester) attachDictionarySheet(book *excelize.File, index map[string]*RawRecord) {
	if !hasSheet(book, sheetDataDictionary) {
		return
	}

	rows, err := book.GetRows(sheetDataDictionary)
	if err != nil || len(rows) < 2 {
		return
	}

	headers := rows[0]
	for _, row := range rows[1:] {
		cells := cellMap(headers, row)
		rec, ok := index[cells["dataset_identifier"]]
		if !ok || cells["field_id"] == "" {
			continue
		}

		for _, dist := range rec.Distributions {
			if cells["resource_name"] != "" && dist.Name != cells["resource_name"] {
				continue
			}
			dist.DictionaryFields = append(dist.DictionaryFields, models.DataDictionaryField{
				ID:           cells["field_id"],
				Type:         cells["field_type"],
				Label:        cells["field_label"],
				Notes:        cells["field_notes"],
				TypeOverride: cells["type_override"],
			})
			break
		}
	}
}

func cellMap(headers, row []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, header := range headers {
		header = strings.ToLower(strings.TrimSpace(header))
		if header == "" || i >= len(row) {
			continue
		}
		out[header] = strings.TrimSpace(row[i])
	}
	return out
}
