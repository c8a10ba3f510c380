package sim

import (
	"image"

	"litmuslab/internal/chem"
)

// Reacts is the litmus truth table: blue paper reacts to acid, red paper to base.
// Nothing reacts to a neutral liquid.
func Reacts(ind chem.Indicator, sub chem.Substance) bool {
	switch {
	case ind == chem.IndicatorBlue && sub == chem.SubstanceAcid:
		return true
	case ind == chem.IndicatorRed && sub == chem.SubstanceBase:
		return true
	}
	return false
}

// Evaluate decides whether a collision fires the reaction. The paper rectangle
// is inclusive of its edges here, unlike the stricter wetting test. An already
// latched reaction never fires again.
func Evaluate(ind chem.Indicator, sub chem.Substance, at image.Point, paper image.Rectangle, triggered bool) bool {
	if triggered || !Reacts(ind, sub) {
		return false
	}
	return paper.Min.X <= at.X && at.X <= paper.Max.X && paper.Min.Y <= at.Y && at.Y <= paper.Max.Y
}
