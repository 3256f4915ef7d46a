package labels

import "github.com/mattn/go-runewidth"

// narrowCondition measures ambiguous-width runes as narrow regardless of locale
var narrowCondition = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// EstimateTextWidth returns the width of s in font-size units: one unit
// per narrow rune and two per wide (CJK, full-width) rune, halved.
func EstimateTextWidth(s string) float64 {
	units := 0
	for _, r := range s {
		w := narrowCondition.RuneWidth(r)
		if w < 1 {
			w = 1
		}
		units += w
	}
	return float64(units) / 2
}
