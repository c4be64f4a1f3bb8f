package dietary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlerts(t *testing.T) {
	tests := []struct {
		text string
		want []Alert
	}{
		{"One cheeseburger medium rare with fries.", []Alert{
			{Category: "dairy", Matches: []string{"cheeseburger"}},
			{Category: "gluten", Matches: []string{"cheeseburger"}},
		}},
		{"The vegetarian pasta with extra Parmesan, no mushrooms.", []Alert{
			{Category: "dairy", Matches: []string{"parmesan"}},
			{Category: "gluten", Matches: []string{"pasta"}},
		}},
		{"I'd like the grilled salmon with a side salad, please.", []Alert{
			{Category: "fish", Matches: []string{"salmon"}},
		}},
		{"Bread, bread and more BREAD", []Alert{
			{Category: "gluten", Matches: []string{"bread"}},
		}},
		// Whole words only.
		{"Carrot and crabapple juice", []Alert{}},
		{"", []Alert{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Alerts(tt.text))
		})
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"dairy", "egg", "fish", "gluten", "nuts", "shellfish", "soy"}, Categories())
}
