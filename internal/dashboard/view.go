package dashboard

import (
	"skyrisk/internal/risk"
	"skyrisk/internal/types"
)

// Bar labels.
const (
	LabelClimatology = "Climatology Chance"
	LabelForecast    = "Forecast Risk"
)

var categoryTitles = map[types.RiskCategory]string{
	types.CategoryHot:   "Very Hot",
	types.CategoryCold:  "Very Cold",
	types.CategoryWet:   "Very Wet",
	types.CategoryWindy: "Very Windy",
}

var categoryIcons = map[types.RiskCategory]string{
	types.CategoryHot:   "🔥",
	types.CategoryCold:  "❄️",
	types.CategoryWet:   "💧",
	types.CategoryWindy: "💨",
}

// Bar is one progress bar of a category card.
type Bar struct {
	Label string        `json:"label"`
	Value int           `json:"value"`
	Level risk.BarLevel `json:"level"`
}

// CategoryView is one card of the results grid. Forecast is nil when the
// date is outside the forecast window, in which case the bar is not drawn.
type CategoryView struct {
	Category    types.RiskCategory `json:"category"`
	Title       string             `json:"title"`
	Icon        string             `json:"icon"`
	Climatology Bar                `json:"climatology"`
	Forecast    *Bar               `json:"forecast,omitempty"`
}

// View is a ViewState plus everything the page derives from it.
type View struct {
	ViewState
	LocationLabel string         `json:"location_label,omitempty"`
	Categories    []CategoryView `json:"categories,omitempty"`
}

// Derive builds the rendered view. Cards are only present when a result is
// held and no lookup is in flight.
func Derive(s ViewState) View {
	v := View{ViewState: s}
	if s.Location != nil {
		v.LocationLabel = s.Location.Label()
	}
	if s.Loading || s.Risk == nil {
		return v
	}
	v.Categories = Cards(*s.Risk)
	return v
}

// Cards renders the four category cards of a result in display order.
func Cards(r types.RiskResult) []CategoryView {
	cards := make([]CategoryView, 0, len(types.Categories))
	for _, c := range types.Categories {
		score := r.Score(c)
		card := CategoryView{
			Category:    c,
			Title:       categoryTitles[c],
			Icon:        categoryIcons[c],
			Climatology: newBar(LabelClimatology, score.ClimatologyPercent),
		}
		if score.ForecastPercent != nil {
			b := newBar(LabelForecast, *score.ForecastPercent)
			card.Forecast = &b
		}
		cards = append(cards, card)
	}
	return cards
}

func newBar(label string, value int) Bar {
	return Bar{Label: label, Value: value, Level: risk.Level(value)}
}
