package dataset

// ColumnInfo describes one column for schema introspection, combining the
// declared header with its metadata entry when present.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Description  string `json:"description,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// TableSchema describes one table.
type TableSchema struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	PrimaryKey  string            `json:"primary_key,omitempty"`
	ForeignKeys map[string]string `json:"foreign_keys,omitempty"`
	Columns     []ColumnInfo      `json:"columns"`
	RowCount    int               `json:"row_count"`
}

// Schema returns the per-table schema in the fixed table order. Column order
// follows the CSV header, not the metadata document, so output is stable.
func (m *Model) Schema() []TableSchema {
	out := make([]TableSchema, 0, len(TableOrder))
	for _, table := range TableOrder {
		meta := m.Meta.Tables[table]

		columns := make([]ColumnInfo, 0, len(Headers[table]))
		for _, col := range Headers[table] {
			info := ColumnInfo{Name: col}
			if fm, ok := meta.Fields[col]; ok {
				info.Type = fm.Type
				info.Description = fm.Description
				info.Unit = fm.Unit
				info.Relationship = fm.Relationship
			}
			columns = append(columns, info)
		}

		out = append(out, TableSchema{
			Name:        table,
			Description: meta.Description,
			PrimaryKey:  meta.PrimaryKey,
			ForeignKeys: meta.ForeignKeys,
			Columns:     columns,
			RowCount:    m.RowCount(table),
		})
	}
	return out
}

// TableRows returns the rows of the named table as JSON-friendly records in
// file order, or false for an unknown table.
func (m *Model) TableRows(table string) ([]any, bool) {
	switch table {
	case TableCustomers:
		out := make([]any, len(m.Customers))
		for i, r := range m.Customers {
			out[i] = r
		}
		return out, true
	case TableSuppliers:
		out := make([]any, len(m.Suppliers))
		for i, r := range m.Suppliers {
			out[i] = r
		}
		return out, true
	case TableProducts:
		out := make([]any, len(m.Products))
		for i, r := range m.Products {
			out[i] = r
		}
		return out, true
	case TableOrders:
		out := make([]any, len(m.Orders))
		for i, r := range m.Orders {
			out[i] = r
		}
		return out, true
	case TableOrderItems:
		out := make([]any, len(m.OrderItems))
		for i, r := range m.OrderItems {
			out[i] = r
		}
		return out, true
	}
	return nil, false
}
