package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/finextract/internal/record"
)

// Template produces the fixed extraction instruction. Years are the keys the
// model must use; without years it asks for "Year 1" and "Year 2".
type Template struct {
	Years []string
}

const instructionIntro = `You are a financial data extraction expert.
Extract the following financial information from the provided text chunks of an annual report.
The report contains financial information for %s.
Ensure high accuracy, return only what's explicitly stated, and include the corresponding page number for every metric extracted.

Extract the data in structured JSON format as shown below:

`

const instructionRules = `
IMPORTANT:
- Use only the data from the text provided; do not guess or infer.
- Use the exact names and values as written in the document (even if in LKR or USD).
- Write amounts as plain numbers or as quoted strings; never put thousands separators in an unquoted number.
- If a value is unavailable in the provided text, emit null for it. Do not guess.
- Use the year labels exactly as listed above as the keys for each year.

Respond with ONLY the JSON object inside a single json code block.`

// Render returns the instruction text.
func (t Template) Render() string {
	years := t.Years
	if len(years) == 0 {
		years = []string{"Year 1", "Year 2"}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, instructionIntro, describeYears(years))
	sb.WriteString("{\n")

	yearly := func(concept string, fields []string, last bool) {
		fmt.Fprintf(&sb, "  %q: {\n", concept)
		for i, y := range years {
			fmt.Fprintf(&sb, "    %q: {", y)
			for _, f := range fields {
				fmt.Fprintf(&sb, "%q: <amount>, ", f)
			}
			sb.WriteString(`"Page": <page_number>}`)
			if i < len(years)-1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('\n')
		}
		sb.WriteString("  }")
		if !last {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}

	revenue := append(append([]string(nil), record.Segments...), "Group Revenue")
	yearly(record.ConceptTotalRevenue, revenue, false)
	yearly(record.ConceptEPS, []string{"EPS"}, false)
	yearly(record.ConceptNetProfit, []string{"Net Profit"}, false)
	yearly(record.ConceptCostOfSales, []string{"Cost of Sales"}, false)
	yearly(record.ConceptOperatingExpenses, record.OperatingExpenseLines, false)
	yearly(record.ConceptGrossProfit, []string{"Gross Profit"}, false)
	yearly(record.ConceptNetAssetPerShare, []string{"Net Asset Per Share"}, false)

	fmt.Fprintf(&sb, "  %q: {\n", record.ConceptTopShareholders)
	sb.WriteString(`    "Shareholders": [<name_1>, <name_2>, ..., <name_20>],` + "\n")
	sb.WriteString(`    "Number of Shares": [<shares_1>, <shares_2>, ..., <shares_20>],` + "\n")
	sb.WriteString(`    "Share %": [<percent_1>, <percent_2>, ..., <percent_20>],` + "\n")
	sb.WriteString(`    "Page": <page_number>` + "\n")
	sb.WriteString("  }\n}\n")

	sb.WriteString(instructionRules)
	return sb.String()
}

func describeYears(years []string) string {
	switch len(years) {
	case 1:
		return "the year " + years[0]
	case 2:
		return fmt.Sprintf("two years (%s and %s)", years[0], years[1])
	default:
		return fmt.Sprintf("%d years (%s)", len(years), strings.Join(years, ", "))
	}
}
