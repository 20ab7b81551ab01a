// Package validation holds pre-flight checks on run inputs and invariant
// checks on the aggregated edge table.
package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// ValidationError describes one failed check
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("validation error in field '%s': %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(ve), ve[0].Error(), len(ve)-1)
}

// ValidateInputFile checks that a contract table exists, is a regular file
// and is not empty
func ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ValidationError{Field: "input", Message: "file does not exist", Value: path}
	}
	if err != nil {
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return ValidationError{Field: "input", Message: "path is a directory", Value: path}
	}
	if info.Size() == 0 {
		return ValidationError{Field: "input", Message: "file is empty", Value: path}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open input file: %w", err)
	}
	return file.Close()
}

// ValidateOutputDirectory checks if output directory exists or can be created,
// and that it is writable
func ValidateOutputDirectory(outputDir string) error {
	info, err := os.Stat(outputDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory: %w", err)
	}
	if !info.IsDir() {
		return ValidationError{Field: "output", Message: "path exists but is not a directory", Value: outputDir}
	}

	probe, err := os.CreateTemp(outputDir, ".write_test")
	if err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}
	probe.Close()
	os.Remove(filepath.Clean(probe.Name()))

	return nil
}

// ValidateEdges checks the aggregated edge table: one edge per pair, positive
// counts and ordered min/max statistics
func ValidateEdges(edges []models.Edge) error {
	var errors ValidationErrors

	seen := make(map[models.PairKey]int, len(edges))
	for i, e := range edges {
		key := e.Key()
		if first, dup := seen[key]; dup {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("edges[%d]", i),
				Message: fmt.Sprintf("duplicate buyer-supplier pair, first at %d", first),
				Value:   fmt.Sprintf("%s/%s", e.BuyerID, e.SupplierID),
			})
			continue
		}
		seen[key] = i

		if e.Count < 1 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("edges[%d].count", i),
				Message: "count must be positive",
				Value:   fmt.Sprint(e.Count),
			})
		}
		if outOfOrder(e.AmountMin, e.AmountMean) || outOfOrder(e.AmountMean, e.AmountMax) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("edges[%d].amount", i),
				Message: "amount statistics out of order",
			})
		}
		if outOfOrder(e.OffersMin, e.OffersMean) || outOfOrder(e.OffersMean, e.OffersMax) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("edges[%d].offers", i),
				Message: "offers statistics out of order",
			})
		}
		if e.FirstNotification != nil && e.LastNotification != nil && e.LastNotification.Before(*e.FirstNotification) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("edges[%d].notification", i),
				Message: "last notification precedes first",
			})
		}
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// outOfOrder reports lo > hi with a small tolerance for accumulated sums
func outOfOrder(lo, hi *float64) bool {
	if lo == nil || hi == nil {
		return false
	}
	return *lo-*hi > 1e-9*(1+abs(*hi))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
