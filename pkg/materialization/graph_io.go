package materialization

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SaveProjection writes the supplier projection as a weighted edge list.
// Format is determined by file extension: .csv, or .edgelist/.txt for the
// whitespace "nodes edges" header format.
func SaveProjection(proj *SupplierProjection, outputPath string) error {
	if proj == nil {
		return fmt.Errorf("projection cannot be nil")
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".csv":
		return SaveProjectionCSV(proj, outputPath)
	default:
		return SaveProjectionEdgeList(proj, outputPath)
	}
}

// SaveProjectionEdgeList writes "nodes edges" followed by one
// "supplier supplier weight" line per edge. Supplier ids must not contain
// whitespace for the file to be read back.
func SaveProjectionEdgeList(proj *SupplierProjection, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := fmt.Fprintf(w, "%d %d\n", proj.NumNodes(), proj.NumEdges()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range proj.edges {
		if _, err := fmt.Fprintf(w, "%s %s %g\n", proj.suppliers[e.From], proj.suppliers[e.To], e.Weight); err != nil {
			return fmt.Errorf("failed to write edge: %w", err)
		}
	}
	return w.Flush()
}

// SaveProjectionCSV writes supplier_a,supplier_b,shared_buyers rows
func SaveProjectionCSV(proj *SupplierProjection, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"supplier_a", "supplier_b", "shared_buyers"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range proj.edges {
		record := []string{
			proj.suppliers[e.From],
			proj.suppliers[e.To],
			strconv.FormatFloat(e.Weight, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
