package risk

// BarLevel is the colour band of a progress bar.
type BarLevel string

const (
	LevelLow      BarLevel = "low"      // green
	LevelModerate BarLevel = "moderate" // yellow
	LevelHigh     BarLevel = "high"     // orange
	LevelSevere   BarLevel = "severe"   // red
)

// Level maps a percentage to its bar colour band. Bands are exclusive at the
// lower edge: 25 is still low, 26 is moderate.
func Level(percent int) BarLevel {
	switch {
	case percent > 75:
		return LevelSevere
	case percent > 50:
		return LevelHigh
	case percent > 25:
		return LevelModerate
	default:
		return LevelLow
	}
}
