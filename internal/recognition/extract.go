package recognition

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Digit runs with optional thousands-separator commas and an optional
// decimal part, e.g. "12,500", "250.50", "2.5".
var numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ExtractNumbers turns raw recognized text into a ranked, deduplicated list
// of numeric strings the user can assign to a form field. Thousands
// separators are stripped, values that do not parse as finite positive
// numbers are discarded, and duplicates keep their first occurrence. The
// result is sorted by numeric value descending: odometer readings and totals
// tend to be the largest numbers on a meter or receipt photo, so they
// surface first, with small values like fuel volume toward the end.
//
// No matches yields an empty, non-nil slice. A recognition failure is a
// separate error path owned by the Recognizer, never by this function.
func ExtractNumbers(rawText string) []string {
	candidates := make([]string, 0)
	values := make(map[string]float64)

	for _, match := range numberPattern.FindAllString(rawText, -1) {
		normalized := strings.ReplaceAll(match, ",", "")
		value, err := strconv.ParseFloat(normalized, 64)
		if err != nil || value <= 0 {
			continue
		}
		if _, seen := values[normalized]; seen {
			continue
		}
		values[normalized] = value
		candidates = append(candidates, normalized)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return values[candidates[i]] > values[candidates[j]]
	})

	return candidates
}
