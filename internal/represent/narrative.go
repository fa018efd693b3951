package represent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
)

// buildNarrative renders one declarative sentence per order item, resolving
// the full join path OrderItem -> Order -> Customer and OrderItem -> Product
// -> Supplier. Sentences come out in order-id-ascending, then item-position
// order. Load-time validation guarantees every non-optional join resolves,
// so a missing row here would be a programming error, not a data condition.
func buildNarrative(m *dataset.Model) (string, error) {
	orderIDs := make([]string, 0, len(m.Orders))
	for _, o := range m.Orders {
		orderIDs = append(orderIDs, o.ID)
	}
	sort.Strings(orderIDs)

	var sentences []string
	for _, orderID := range orderIDs {
		order := m.OrderByID[orderID]
		customer := m.CustomerByID[order.CustomerID]

		for _, item := range m.ItemsByOrder[orderID] {
			sentence, err := itemSentence(m, order, customer, item)
			if err != nil {
				return "", err
			}
			sentences = append(sentences, sentence)
		}
	}
	return strings.Join(sentences, "\n"), nil
}

func itemSentence(m *dataset.Model, order dataset.Order, customer dataset.Customer, item dataset.OrderItem) (string, error) {
	if item.Quantity < 0 {
		return "", &RenderError{
			Format: FormatEnglishNarrative,
			Detail: fmt.Sprintf("order %s item %s has negative quantity %d", order.ID, item.ProductID, item.Quantity),
		}
	}
	if item.UnitPrice <= 0 {
		return "", &RenderError{
			Format: FormatEnglishNarrative,
			Detail: fmt.Sprintf("order %s item %s has non-positive unit price %s", order.ID, item.ProductID, currency(item.UnitPrice)),
		}
	}

	product := m.ProductByID[item.ProductID]
	total := item.UnitPrice * float64(item.Quantity)

	// The supplier clause is dropped, not placeholdered, when the product
	// has no linked supplier. The sentence stays grammatical either way.
	supplierClause := ""
	if supplier, ok := m.SupplierForProduct(item.ProductID); ok {
		supplierClause = fmt.Sprintf(" (supplied by %s)", supplier.Name)
	}

	return fmt.Sprintf("%s ordered %d x %s%s on %s for %s, status %s.",
		customer.Name, item.Quantity, product.Name, supplierClause,
		order.OrderDate, currency(total), order.Status), nil
}
