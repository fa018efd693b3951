package represent_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/represent"
)

func testModel(t *testing.T, mutate func(*dataset.Model)) *dataset.Model {
	t.Helper()
	m, err := dataset.LoadSource(dataset.Source{
		Customers: strings.NewReader("customer_id,name,segment\n" +
			"C1,Emily Nakamura,VIP\n" +
			"C2,Robert Kim,Standard\n"),
		Suppliers: strings.NewReader("supplier_id,name\n" +
			"S1,TechWorld Distribution\n"),
		Products: strings.NewReader("product_id,name,category,price,supplier_id\n" +
			"P1,Wireless Mouse,Electronics,10.00,S1\n" +
			"P2,Green Tea,Grocery,5.00,\n" +
			"P3,Notebook,Stationery,7.50,S1\n"),
		Orders: strings.NewReader("order_id,customer_id,order_date,status\n" +
			"O2,C2,2024-01-09,Pending\n" + // out of id order on purpose
			"O1,C1,2024-01-05,Delivered\n"),
		OrderItems: strings.NewReader("order_id,product_id,quantity,unit_price\n" +
			"O1,P1,2,10.00\n" +
			"O1,P2,1,5.00\n" +
			"O2,P3,3,7.50\n"),
		Metadata: strings.NewReader(`{
			"tables": {
				"customers": {
					"description": "People who place orders",
					"primary_key": "customer_id",
					"fields": {
						"customer_id": {"description": "Unique customer identifier", "type": "string"},
						"name": {"description": "Full customer name", "type": "string"},
						"segment": {"description": "Commercial segment", "type": "string"}
					}
				},
				"products": {
					"description": "Catalog items",
					"primary_key": "product_id",
					"foreign_keys": {"supplier_id": "suppliers.supplier_id"},
					"fields": {
						"price": {"description": "Catalog price", "type": "decimal", "unit": "USD"},
						"supplier_id": {"description": "Supplying vendor", "relationship": "references suppliers"}
					}
				}
			}
		}`),
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(m)
	}
	return m
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, f := range represent.Formats() {
		got, err := represent.ParseFormat(string(f))
		require.NoError(t, err)
		require.Equal(t, f, got)
	}

	_, err := represent.ParseFormat("json")
	require.ErrorIs(t, err, represent.ErrUnknownFormat)
	_, err = represent.ParseFormat("")
	require.ErrorIs(t, err, represent.ErrUnknownFormat)
}

func TestBuild_RawCSV_BlockShape(t *testing.T) {
	t.Parallel()
	m := testModel(t, nil)

	text, err := represent.Build(m, represent.FormatRawCSV)
	require.NoError(t, err)

	blocks := strings.Split(text, "\n\n")
	require.Len(t, blocks, 5)

	// One header line and N data lines per table, in the fixed table order.
	wantRows := map[string]int{
		dataset.TableCustomers:  2,
		dataset.TableSuppliers:  1,
		dataset.TableProducts:   3,
		dataset.TableOrders:     2,
		dataset.TableOrderItems: 3,
	}
	for i, table := range dataset.TableOrder {
		lines := strings.Split(strings.TrimRight(blocks[i], "\n"), "\n")
		require.Equal(t, "=== TABLE: "+table+" ===", lines[0])
		require.Equal(t, strings.Join(dataset.Headers[table], ","), lines[1])
		require.Len(t, lines[2:], wantRows[table], "data rows for %s", table)
	}

	require.Contains(t, text, "P1,Wireless Mouse,Electronics,10.00,S1")
	require.Contains(t, text, "O1,P2,1,5.00")
}

func TestBuild_CSVWithMetadata_PrependsOneBlockPerTable(t *testing.T) {
	t.Parallel()
	m := testModel(t, nil)

	raw, err := represent.Build(m, represent.FormatRawCSV)
	require.NoError(t, err)
	annotated, err := represent.Build(m, represent.FormatCSVWithMetadata)
	require.NoError(t, err)

	require.Equal(t, len(dataset.TableOrder), strings.Count(annotated, "=== METADATA: "))

	// Stripping the metadata blocks yields raw_csv exactly.
	var kept []string
	for _, block := range strings.Split(annotated, "\n\n") {
		if strings.HasPrefix(block, "=== METADATA: ") {
			continue
		}
		kept = append(kept, block)
	}
	require.Equal(t, raw, strings.Join(kept, "\n\n"))

	// Metadata fields render in header order with description/unit/relationship.
	require.Contains(t, annotated, "=== METADATA: products ===")
	require.Contains(t, annotated, "primary_key: product_id")
	require.Contains(t, annotated, "foreign_key: supplier_id -> suppliers.supplier_id")
	require.Contains(t, annotated, "  price: Catalog price [USD]")
	require.Contains(t, annotated, "  supplier_id: Supplying vendor (references suppliers)")

	idIdx := strings.Index(annotated, "  product_id")
	priceIdx := strings.Index(annotated, "  price:")
	require.Greater(t, priceIdx, idIdx, "fields must follow header order")
}

func TestBuild_Narrative_SentencesAndOrdering(t *testing.T) {
	t.Parallel()
	m := testModel(t, nil)

	text, err := represent.Build(m, represent.FormatEnglishNarrative)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 3)

	// Order-id ascending, then item position within the order — even though
	// the orders table lists O2 first.
	require.Equal(t, "Emily Nakamura ordered 2 x Wireless Mouse (supplied by TechWorld Distribution) on 2024-01-05 for 20.00, status Delivered.", lines[0])
	require.Equal(t, "Emily Nakamura ordered 1 x Green Tea on 2024-01-05 for 5.00, status Delivered.", lines[1])
	require.Equal(t, "Robert Kim ordered 3 x Notebook (supplied by TechWorld Distribution) on 2024-01-09 for 22.50, status Pending.", lines[2])
}

func TestBuild_Narrative_SupplierClauseOmittedNotPlaceholdered(t *testing.T) {
	t.Parallel()
	m := testModel(t, nil)

	text, err := represent.Build(m, represent.FormatEnglishNarrative)
	require.NoError(t, err)

	require.NotContains(t, text, "supplied by )")
	require.NotContains(t, text, "unknown supplier")
	require.Contains(t, text, "1 x Green Tea on")
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	m := testModel(t, nil)

	for _, f := range represent.Formats() {
		first, err := represent.Build(m, f)
		require.NoError(t, err)
		second, err := represent.Build(m, f)
		require.NoError(t, err)
		require.Equal(t, first, second, "format %s must be byte-identical across runs", f)
	}
}

func TestBuild_Narrative_NegativeQuantityIsRenderError(t *testing.T) {
	t.Parallel()
	m := testModel(t, func(m *dataset.Model) {
		m.OrderItems[0].Quantity = -2
		m.ItemsByOrder["O1"][0].Quantity = -2
	})

	_, err := represent.Build(m, represent.FormatEnglishNarrative)
	require.Error(t, err)

	var re *represent.RenderError
	require.True(t, errors.As(err, &re))
	require.Equal(t, represent.FormatEnglishNarrative, re.Format)
	require.Contains(t, re.Detail, "negative quantity")
}

func TestBuild_Narrative_ZeroUnitPriceIsRenderError(t *testing.T) {
	t.Parallel()
	m := testModel(t, func(m *dataset.Model) {
		m.OrderItems[0].UnitPrice = 0
		m.ItemsByOrder["O1"][0].UnitPrice = 0
	})

	_, err := represent.Build(m, represent.FormatEnglishNarrative)
	require.Error(t, err)

	var re *represent.RenderError
	require.True(t, errors.As(err, &re))
	require.Equal(t, represent.FormatEnglishNarrative, re.Format)
	require.Contains(t, re.Detail, "non-positive unit price")
}

func TestBuildAll(t *testing.T) {
	t.Parallel()
	m := testModel(t, nil)

	all, err := represent.BuildAll(m)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, f := range represent.Formats() {
		require.NotEmpty(t, all[f])
	}
}
