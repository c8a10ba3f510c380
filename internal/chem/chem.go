// Package chem holds the litmus lab's chemistry vocabulary: indicator and
// substance types, the chemical registry, and the colors each of them renders as.
package chem

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidSelection is returned for an unknown indicator, substance or chemical id.
var ErrInvalidSelection = errors.New("invalid selection")

// Indicator is the litmus paper variant on the bench.
type Indicator string

const (
	IndicatorRed  Indicator = "red"
	IndicatorBlue Indicator = "blue"
)

// Substance is the classification of the liquid in the tube.
type Substance string

const (
	SubstanceAcid    Substance = "acid"
	SubstanceBase    Substance = "base"
	SubstanceNeutral Substance = "neutral"
)

// ParseIndicator accepts "red"/"blue" as well as "red_litmus"/"blue_litmus".
func ParseIndicator(s string) (Indicator, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "_litmus") {
	case "red":
		return IndicatorRed, nil
	case "blue":
		return IndicatorBlue, nil
	}
	return "", fmt.Errorf("indicator %q: %w", s, ErrInvalidSelection)
}

// ParseSubstance accepts "acid", "base" or "neutral".
func ParseSubstance(s string) (Substance, error) {
	switch Substance(strings.ToLower(strings.TrimSpace(s))) {
	case SubstanceAcid:
		return SubstanceAcid, nil
	case SubstanceBase:
		return SubstanceBase, nil
	case SubstanceNeutral:
		return SubstanceNeutral, nil
	}
	return "", fmt.Errorf("substance %q: %w", s, ErrInvalidSelection)
}

// Label is the text printed on the paper's label strip.
func (i Indicator) Label() string {
	if i == IndicatorBlue {
		return "BLUE LITMUS"
	}
	return "RED LITMUS"
}

var (
	litmusRed  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	litmusBlue = color.RGBA{R: 40, G: 80, B: 220, A: 255}
)

// UntouchedColor is the paper color before any reaction.
func UntouchedColor(i Indicator) color.RGBA {
	if i == IndicatorBlue {
		return litmusBlue
	}
	return litmusRed
}

// ReactedColor is the color the paper turns once the reaction fires:
// blue paper goes red in acid, red paper goes blue in base.
func ReactedColor(i Indicator) color.RGBA {
	if i == IndicatorBlue {
		return litmusRed
	}
	return litmusBlue
}

// LiquidColor is the tube contents' color for a substance.
func LiquidColor(s Substance) color.RGBA {
	switch s {
	case SubstanceAcid:
		return color.RGBA{R: 220, G: 60, B: 60, A: 255}
	case SubstanceBase:
		return color.RGBA{R: 40, G: 80, B: 200, A: 255}
	default:
		return color.RGBA{R: 255, G: 200, B: 200, A: 255}
	}
}

// Chemical is one entry of the registry.
type Chemical struct {
	ID      string
	Label   string
	Formula string
	Type    Substance
}

var registry = map[string]Chemical{
	"HCl":        {ID: "HCl", Label: "Hydrochloric Acid", Formula: "HCl", Type: SubstanceAcid},
	"H2SO4":      {ID: "H2SO4", Label: "Sulfuric Acid", Formula: "H₂SO₄", Type: SubstanceAcid},
	"HNO3":       {ID: "HNO3", Label: "Nitric Acid", Formula: "HNO₃", Type: SubstanceAcid},
	"CitricAcid": {ID: "CitricAcid", Label: "Citric Acid", Formula: "C₆H₈O₇", Type: SubstanceAcid},
	"AceticAcid": {ID: "AceticAcid", Label: "Acetic Acid", Formula: "CH₃COOH", Type: SubstanceAcid},
	"NaOH":       {ID: "NaOH", Label: "Sodium Hydroxide", Formula: "NaOH", Type: SubstanceBase},
	"KOH":        {ID: "KOH", Label: "Potassium Hydroxide", Formula: "KOH", Type: SubstanceBase},
	"NH3":        {ID: "NH3", Label: "Ammonia Solution", Formula: "NH₃", Type: SubstanceBase},
	"CaOH2":      {ID: "CaOH2", Label: "Calcium Hydroxide", Formula: "Ca(OH)₂", Type: SubstanceBase},
	"NaHCO3":     {ID: "NaHCO3", Label: "Baking Soda", Formula: "NaHCO₃", Type: SubstanceBase},
	"Water":      {ID: "Water", Label: "Distilled Water", Formula: "H₂O", Type: SubstanceNeutral},
	"NaClSol":    {ID: "NaClSol", Label: "Saline Solution", Formula: "NaCl(aq)", Type: SubstanceNeutral},
	"SugarSol":   {ID: "SugarSol", Label: "Sugar Solution", Formula: "C₁₂H₂₂O₁₁(aq)", Type: SubstanceNeutral},
}

// LookupChemical returns the registry entry for id.
func LookupChemical(id string) (Chemical, error) {
	c, ok := registry[strings.TrimSpace(id)]
	if !ok {
		return Chemical{}, fmt.Errorf("chemical %q (known: %s): %w", id, strings.Join(ChemicalIDs(), ", "), ErrInvalidSelection)
	}
	return c, nil
}

// ChemicalIDs returns every registered id, sorted.
func ChemicalIDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
