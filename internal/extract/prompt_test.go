package extract

import (
	"strings"
	"testing"

	"github.com/dgallion1/finextract/internal/record"
)

func TestTemplateRender_DefaultYears(t *testing.T) {
	text := Template{}.Render()
	for _, want := range []string{`"Year 1": {`, `"Year 2": {`, "two years (Year 1 and Year 2)"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected instruction to contain %q", want)
		}
	}
}

func TestTemplateRender_ConceptsAndYears(t *testing.T) {
	text := Template{Years: []string{"2023", "2022"}}.Render()
	for _, c := range record.Concepts {
		if !strings.Contains(text, `"`+c+`": {`) {
			t.Errorf("expected concept %q in instruction", c)
		}
	}
	for _, want := range []string{`"2023": {"EPS": <amount>, "Page": <page_number>},`, `"Group Revenue"`, `"Share %"`, "emit null", "Do not guess"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected instruction to contain %q", want)
		}
	}
	if strings.Contains(text, "Year 1") {
		t.Error("expected custom years to replace placeholders")
	}
}

func TestDescribeYears(t *testing.T) {
	tests := []struct {
		years []string
		want  string
	}{
		{[]string{"2023"}, "the year 2023"},
		{[]string{"2023", "2022"}, "two years (2023 and 2022)"},
		{[]string{"2023", "2022", "2021"}, "3 years (2023, 2022, 2021)"},
	}
	for _, tc := range tests {
		if got := describeYears(tc.years); got != tc.want {
			t.Errorf("describeYears(%v) = %q, want %q", tc.years, got, tc.want)
		}
	}
}
