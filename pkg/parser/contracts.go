// Package parser loads procurement contract tables into typed rows.
//
// Input columns are bound to ContractRow fields through an explicit
// ColumnMapping which is validated against the header before any row is
// read. Buyer and supplier identifier columns are required; every other
// column is optional and, when absent or unparseable, leaves the
// corresponding field missing.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// Field identifies a ContractRow attribute a column can be bound to
type Field int

const (
	FieldUID Field = iota
	FieldID
	FieldType
	FieldCPVCode
	FieldBuyerID
	FieldBuyerName
	FieldSupplierID
	FieldSupplierName
	FieldAmount
	FieldNotificationDate
	FieldProcedure
	FieldDurationMonths
	FieldOffersReceived
	FieldBuyerDepartmentCode
	FieldSupplierDepartmentCode
	FieldBuyerRegionCode
	FieldSupplierRegionCode
)

var fieldNames = map[Field]string{
	FieldUID:                    "uid",
	FieldID:                     "id",
	FieldType:                   "type",
	FieldCPVCode:                "cpv_code",
	FieldBuyerID:                "buyer_id",
	FieldBuyerName:              "buyer_name",
	FieldSupplierID:             "supplier_id",
	FieldSupplierName:           "supplier_name",
	FieldAmount:                 "amount",
	FieldNotificationDate:       "notification_date",
	FieldProcedure:              "procedure",
	FieldDurationMonths:         "duration_months",
	FieldOffersReceived:         "offers_received",
	FieldBuyerDepartmentCode:    "buyer_department_code",
	FieldSupplierDepartmentCode: "supplier_department_code",
	FieldBuyerRegionCode:        "buyer_region_code",
	FieldSupplierRegionCode:     "supplier_region_code",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// RequiredFields must be bound to a header column for a table to load
var RequiredFields = []Field{FieldBuyerID, FieldSupplierID}

var (
	// ErrMissingColumn is returned when a required column is absent from the header
	ErrMissingColumn = errors.New("missing required column")
	// ErrInvalidMapping is returned when a column mapping binds a field twice
	ErrInvalidMapping = errors.New("invalid column mapping")
)

// ColumnMapping binds input column names to ContractRow fields
type ColumnMapping map[string]Field

// DefaultColumnMapping returns the mapping for the DECP consolidated export
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		"uid":                        FieldUID,
		"id":                         FieldID,
		"type":                       FieldType,
		"codeCPV":                    FieldCPVCode,
		"acheteur_id":                FieldBuyerID,
		"acheteur_nom":               FieldBuyerName,
		"titulaire_id":               FieldSupplierID,
		"titulaire_nom":              FieldSupplierName,
		"montant":                    FieldAmount,
		"dateNotification":           FieldNotificationDate,
		"procedure":                  FieldProcedure,
		"dureeMois":                  FieldDurationMonths,
		"offresRecues":               FieldOffersReceived,
		"acheteur_departement_code":  FieldBuyerDepartmentCode,
		"titulaire_departement_code": FieldSupplierDepartmentCode,
		"acheteur_region_code":       FieldBuyerRegionCode,
		"titulaire_region_code":      FieldSupplierRegionCode,
	}
}

// Validate checks that no field is bound to more than one column
func (m ColumnMapping) Validate() error {
	seen := make(map[Field]string, len(m))
	for column, field := range m {
		if other, exists := seen[field]; exists {
			return fmt.Errorf("%w: field %s bound to both %q and %q", ErrInvalidMapping, field, other, column)
		}
		seen[field] = column
	}
	return nil
}

// ColumnFor returns the column bound to a field
func (m ColumnMapping) ColumnFor(field Field) (string, bool) {
	for column, f := range m {
		if f == field {
			return column, true
		}
	}
	return "", false
}

// Schema describes which fields a loaded table actually provided
type Schema struct {
	Header  []string
	present map[Field]int
}

// Has reports whether the field was present in the input header
func (s Schema) Has(field Field) bool {
	_, ok := s.present[field]
	return ok
}

// Bind resolves the mapping against a header. Missing required fields are fatal.
func (m ColumnMapping) Bind(header []string) (Schema, error) {
	if err := m.Validate(); err != nil {
		return Schema{}, err
	}

	schema := Schema{Header: header, present: make(map[Field]int)}
	for i, column := range header {
		column = strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))
		if field, ok := m[column]; ok {
			schema.present[field] = i
		}
	}

	var missing []string
	for _, field := range RequiredFields {
		if !schema.Has(field) {
			column, ok := m.ColumnFor(field)
			if !ok {
				column = field.String()
			}
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return Schema{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return schema, nil
}

// ReadContractsFile loads a contract table from a CSV or gzip-compressed CSV file
func ReadContractsFile(path string, mapping ColumnMapping) ([]models.ContractRow, Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("failed to open contracts file: %w", err)
	}
	defer file.Close()

	return ReadContracts(file, mapping)
}

// ReadContracts loads a contract table from CSV, optionally gzip-compressed
func ReadContracts(r io.Reader, mapping ColumnMapping) ([]models.ContractRow, Schema, error) {
	table, err := OpenTable(r)
	if err != nil {
		return nil, Schema{}, err
	}

	reader := csv.NewReader(table)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Schema{}, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, Schema{}, fmt.Errorf("failed to read header: %w", err)
	}

	schema, err := mapping.Bind(header)
	if err != nil {
		return nil, Schema{}, err
	}

	rows := make([]models.ContractRow, 0, 1024)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, Schema{}, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		rows = append(rows, schema.decode(record))
	}

	return rows, schema, nil
}

func (s Schema) decode(record []string) models.ContractRow {
	get := func(field Field) string {
		idx, ok := s.present[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return cleanString(record[idx])
	}

	return models.ContractRow{
		UID:                    get(FieldUID),
		ID:                     get(FieldID),
		Type:                   get(FieldType),
		CPVCode:                get(FieldCPVCode),
		BuyerID:                get(FieldBuyerID),
		BuyerName:              get(FieldBuyerName),
		SupplierID:             get(FieldSupplierID),
		SupplierName:           get(FieldSupplierName),
		Amount:                 ParseNumber(get(FieldAmount)),
		NotificationDate:       ParseDate(get(FieldNotificationDate)),
		Procedure:              get(FieldProcedure),
		DurationMonths:         ParseNumber(get(FieldDurationMonths)),
		OffersReceived:         ParseNumber(get(FieldOffersReceived)),
		BuyerDepartmentCode:    get(FieldBuyerDepartmentCode),
		SupplierDepartmentCode: get(FieldSupplierDepartmentCode),
		BuyerRegionCode:        get(FieldBuyerRegionCode),
		SupplierRegionCode:     get(FieldSupplierRegionCode),
	}
}

func cleanString(value string) string {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "nan", "null", "none", "<na>":
		return ""
	}
	return value
}

// ParseNumber coerces a cell to a number. Empty, unparseable or non-finite values are missing.
func ParseNumber(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02-07:00",
	"2006-01-02Z07:00",
}

// ParseDate coerces a cell to a date. Unrecognized formats are missing.
func ParseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	// day-first formats such as 02/01/2006 are common in the source exports
	t, err := dateparse.ParseIn(value, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
