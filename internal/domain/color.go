package domain

// ColorAssigner maps ticket states to display colors from a fixed palette.
type ColorAssigner struct {
	palette  map[State]RGB
	fallback RGB
}

// NewColorAssigner builds an assigner from the locale palette.
func NewColorAssigner(locale *Locale) *ColorAssigner {
	return &ColorAssigner{palette: locale.Palette, fallback: locale.Fallback}
}

// Assign returns the color for state. States missing from the palette get the
// fallback color, so the lookup never fails.
func (a *ColorAssigner) Assign(state State) RGB {
	if c, ok := a.palette[state]; ok {
		return c
	}
	return a.fallback
}
