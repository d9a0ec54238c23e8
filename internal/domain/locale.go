package domain

// RGB is a display color as red, green, blue channels.
type RGB [3]uint8

// Locale is the static configuration that drives derivation, filtering, and
// coloring: the status palette, the category vocabulary, and the aliases that
// map source status labels to canonical states. It is injected rather than
// global so tests and other deployments can swap it.
type Locale struct {
	Palette      map[State]RGB    `yaml:"palette"`
	Fallback     RGB              `yaml:"fallback"`
	NoiseColor   RGB              `yaml:"noise_color"`
	Categories   []string         `yaml:"categories"`
	StateAliases map[string]State `yaml:"state_aliases"`
}

// DefaultLocale returns the Bangkok civic-complaint configuration.
func DefaultLocale() *Locale {
	return &Locale{
		Palette: map[State]RGB{
			StateDone:       {0, 255, 0},
			StateInProgress: {0, 0, 255},
			StatePending:    {255, 0, 0},
			StateUnknown:    {0, 0, 0},
		},
		Fallback:   RGB{0, 0, 0},
		NoiseColor: RGB{128, 128, 128},
		Categories: []string{
			"ความสะอาด", "ร้องเรียน", "น้ำท่วม", "สะพาน", "ถนน", "ท่อระบายน้ำ",
			"ทางเท้า", "จราจร", "แสงสว่าง", "กีดขวาง", "เสียงรบกวน", "สายไฟ",
			"คลอง", "ความปลอดภัย", "สัตว์จรจัด", "ต้นไม้", "การเดินทาง",
			"เสนอแนะ", "คนจรจัด",
		},
		StateAliases: map[string]State{
			"เสร็จสิ้น":      StateDone,
			"กำลังดำเนินการ": StateInProgress,
			"รอรับเรื่อง":    StatePending,
		},
	}
}

// HasCategory reports whether category belongs to the vocabulary.
func (l *Locale) HasCategory(category string) bool {
	for _, c := range l.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CanonicalState maps a raw status label onto a canonical state. Empty input
// becomes unknown; labels that are neither canonical nor aliased pass through.
func (l *Locale) CanonicalState(raw string) State {
	if raw == "" {
		return StateUnknown
	}
	if s, ok := l.StateAliases[raw]; ok {
		return s
	}
	return State(raw)
}

// States lists the selectable canonical states in display order.
func States() []State {
	return []State{StateDone, StateInProgress, StatePending}
}
