// Package dietary flags allergens mentioned in order text.
package dietary

import (
	"sort"
	"strings"
	"unicode"
)

// Alert is one allergen category found in a text.
type Alert struct {
	Category string   `json:"category"`
	Matches  []string `json:"matches"`
}

var keywords = map[string][]string{
	"dairy":     {"cheese", "milk", "parmesan", "cream", "butter", "yogurt", "cheeseburger"},
	"egg":       {"egg", "eggs", "omelet", "omelette", "mayo", "mayonnaise"},
	"fish":      {"salmon", "tuna", "cod", "halibut", "tilapia", "anchovy", "anchovies"},
	"gluten":    {"bread", "pasta", "roll", "bun", "wheat", "toast", "noodles", "cheeseburger", "oatmeal"},
	"nuts":      {"peanut", "peanuts", "almond", "almonds", "walnut", "walnuts", "pecan", "pecans", "cashew"},
	"shellfish": {"shrimp", "crab", "lobster", "prawn", "prawns", "scallop", "scallops"},
	"soy":       {"soy", "tofu", "edamame"},
}

var index = func() map[string][]string {
	idx := make(map[string][]string)
	for cat, words := range keywords {
		for _, w := range words {
			idx[w] = append(idx[w], cat)
		}
	}
	return idx
}()

// Alerts returns the allergen categories whose keywords appear as whole
// words in text, sorted by category. Matching ignores case.
func Alerts(text string) []Alert {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	found := make(map[string][]string)
	seen := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, "'")
		for _, cat := range index[w] {
			key := cat + "/" + w
			if seen[key] {
				continue
			}
			seen[key] = true
			found[cat] = append(found[cat], w)
		}
	}

	alerts := make([]Alert, 0, len(found))
	for cat, matches := range found {
		alerts = append(alerts, Alert{Category: cat, Matches: matches})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Category < alerts[j].Category })
	return alerts
}

// Categories lists every category, sorted.
func Categories() []string {
	out := make([]string, 0, len(keywords))
	for cat := range keywords {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
