// Package record holds extracted financial data and flattens it into
// canonical rows.
package record

// Concept keys recognised at the top level of an extraction.
const (
	ConceptTotalRevenue      = "Total Revenue"
	ConceptEPS               = "Earnings Per Share (EPS)"
	ConceptNetProfit         = "Net Profit"
	ConceptCostOfSales       = "Cost of Sales"
	ConceptGrossProfit       = "Gross Profit"
	ConceptNetAssetPerShare  = "Net Asset Per Share"
	ConceptOperatingExpenses = "Operating Expenses"
	ConceptTopShareholders   = "Top Twenty Shareholders"
)

// Concepts lists every recognised concept in prompt order.
var Concepts = []string{
	ConceptTotalRevenue,
	ConceptEPS,
	ConceptNetProfit,
	ConceptCostOfSales,
	ConceptGrossProfit,
	ConceptNetAssetPerShare,
	ConceptOperatingExpenses,
	ConceptTopShareholders,
}

// Segments are the business segments reported under Total Revenue.
var Segments = []string{
	"Transportation",
	"Retail",
	"Property",
	"Consumer Foods",
	"Leisure",
	"Financial Services",
	"Others",
}

// OperatingExpenseLines are the fields reported under Operating Expenses.
var OperatingExpenseLines = []string{
	"Selling and distribution expenses",
	"Administrative expenses",
	"Other operating expenses",
}

var conceptSet = func() map[string]bool {
	m := make(map[string]bool, len(Concepts))
	for _, c := range Concepts {
		m[c] = true
	}
	return m
}()

// IsConcept reports whether key is a recognised concept.
func IsConcept(key string) bool { return conceptSet[key] }

// IsYearly reports whether a concept is keyed by year.
func IsYearly(concept string) bool {
	return conceptSet[concept] && concept != ConceptTopShareholders
}
