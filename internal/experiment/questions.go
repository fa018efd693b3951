package experiment

import (
	"errors"
	"fmt"
)

// Question is one predefined research question. Category describes the kind
// of reasoning it exercises; Difficulty is easy, medium, or hard.
type Question struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Expected   string `json:"expected,omitempty"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// ErrUnknownQuestion is returned for question ids outside the catalog.
var ErrUnknownQuestion = errors.New("unknown question id")

var questions = []Question{
	{ID: "q01", Text: "What is the most expensive product in the catalog?", Expected: "The highest-priced product row", Category: "lookup", Difficulty: "easy"},
	{ID: "q02", Text: "What is the cheapest product?", Expected: "The lowest-priced product row", Category: "lookup", Difficulty: "easy"},
	{ID: "q03", Text: "How many customers are in the VIP segment?", Expected: "Count of customers with segment VIP", Category: "count", Difficulty: "easy"},
	{ID: "q04", Text: "How many products are in the catalog?", Expected: "Total product row count", Category: "count", Difficulty: "easy"},
	{ID: "q05", Text: "How many orders are still pending or processing?", Expected: "Count of orders with status Pending or Processing", Category: "filtering", Difficulty: "medium"},
	{ID: "q06", Text: "What is the total revenue from all orders?", Expected: "Sum of quantity * unit_price over all order items", Category: "aggregation", Difficulty: "medium"},
	{ID: "q07", Text: "How many products are in the Electronics category?", Expected: "Count of products with category Electronics", Category: "filtering", Difficulty: "medium"},
	{ID: "q08", Text: "Which customer has placed the most orders?", Expected: "Customer with the highest order count", Category: "aggregation", Difficulty: "medium"},
	{ID: "q09", Text: "Which product category has generated the most revenue?", Expected: "Category with the highest summed item revenue", Category: "aggregation_with_join", Difficulty: "hard"},
	{ID: "q10", Text: "What products did customer Emily Nakamura purchase across all her orders?", Expected: "Products joined through her orders' items", Category: "multi_join", Difficulty: "hard"},
	{ID: "q11", Text: "Which supplier's products have generated the most total revenue?", Expected: "Supplier with highest revenue across supplied products", Category: "multi_join", Difficulty: "hard"},
	{ID: "q12", Text: "What is the average order value for VIP customers vs Standard customers?", Expected: "Per-segment average of order totals", Category: "complex_aggregation", Difficulty: "hard"},
	{ID: "q13", Text: "What customer attributes are most indicative of higher spending?", Expected: "Segment and repeat-purchase patterns", Category: "inference", Difficulty: "hard"},
	{ID: "q14", Text: "Which product characteristics correlate with higher sales volume?", Expected: "Price point and category effects", Category: "inference", Difficulty: "hard"},
	{ID: "q15", Text: "Are there any suppliers whose products appear to be underperforming?", Expected: "Supplier sales versus catalog presence", Category: "inference", Difficulty: "hard"},
}

// Questions returns the fixed catalog of predefined research questions.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

// QuestionByID looks up a catalog question.
func QuestionByID(id string) (Question, error) {
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return Question{}, fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
}
