package represent

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
)

// tableBlock renders one table as a titled CSV block: a `=== TABLE: name ===`
// line, the header row, then one line per source row. Numeric fields use a
// fixed precision (currency %.2f, quantities as integers) so the output is
// byte-stable across runs.
func tableBlock(m *dataset.Model, table string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== TABLE: %s ===\n", table)

	w := csv.NewWriter(&sb)
	if err := w.Write(dataset.Headers[table]); err != nil {
		return "", fmt.Errorf("failed to write %s header: %w", table, err)
	}

	var rows [][]string
	switch table {
	case dataset.TableCustomers:
		for _, r := range m.Customers {
			rows = append(rows, []string{r.ID, r.Name, r.Segment})
		}
	case dataset.TableSuppliers:
		for _, r := range m.Suppliers {
			rows = append(rows, []string{r.ID, r.Name})
		}
	case dataset.TableProducts:
		for _, r := range m.Products {
			rows = append(rows, []string{r.ID, r.Name, r.Category, currency(r.Price), r.SupplierID})
		}
	case dataset.TableOrders:
		for _, r := range m.Orders {
			rows = append(rows, []string{r.ID, r.CustomerID, r.OrderDate, r.Status})
		}
	case dataset.TableOrderItems:
		for _, r := range m.OrderItems {
			rows = append(rows, []string{r.OrderID, r.ProductID, strconv.Itoa(r.Quantity), currency(r.UnitPrice)})
		}
	default:
		return "", fmt.Errorf("unknown table %q", table)
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write %s rows: %w", table, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", table, err)
	}
	return sb.String(), nil
}

// buildRawCSV concatenates every table block in the fixed table order.
func buildRawCSV(m *dataset.Model) (string, error) {
	blocks := make([]string, 0, len(dataset.TableOrder))
	for _, table := range dataset.TableOrder {
		block, err := tableBlock(m, table)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n"), nil
}

// buildCSVWithMetadata is raw_csv with exactly one metadata block rendered
// before each table block, in the same table order.
func buildCSVWithMetadata(m *dataset.Model) (string, error) {
	blocks := make([]string, 0, 2*len(dataset.TableOrder))
	for _, table := range dataset.TableOrder {
		blocks = append(blocks, metadataBlock(m, table))
		block, err := tableBlock(m, table)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n"), nil
}

// metadataBlock renders one table's schema documentation. Field order
// follows the CSV header, not the metadata document's map order.
func metadataBlock(m *dataset.Model, table string) string {
	meta := m.Meta.Tables[table]

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== METADATA: %s ===\n", table)
	if meta.Description != "" {
		fmt.Fprintf(&sb, "description: %s\n", meta.Description)
	}
	if meta.PrimaryKey != "" {
		fmt.Fprintf(&sb, "primary_key: %s\n", meta.PrimaryKey)
	}
	for _, col := range dataset.Headers[table] {
		if ref, ok := meta.ForeignKeys[col]; ok {
			fmt.Fprintf(&sb, "foreign_key: %s -> %s\n", col, ref)
		}
	}
	sb.WriteString("fields:\n")
	for _, col := range dataset.Headers[table] {
		sb.WriteString("  " + col)
		if fm, ok := meta.Fields[col]; ok {
			if fm.Description != "" {
				sb.WriteString(": " + fm.Description)
			}
			if fm.Unit != "" {
				sb.WriteString(" [" + fm.Unit + "]")
			}
			if fm.Relationship != "" {
				sb.WriteString(" (" + fm.Relationship + ")")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// currency renders a monetary value with exactly two decimal places.
func currency(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
