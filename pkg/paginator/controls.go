package paginator

// Reaction glyphs used as navigation controls.
const (
	Left  = "\u25C0" // ◀
	Stop  = "\u23F9" // ⏹
	Right = "\u25B6" // ▶
)

func isControl(emoji string) bool {
	switch emoji {
	case Left, Stop, Right:
		return true
	}
	return false
}

// controls returns the reactions attached to a message, in attachment order.
func controls(pages int) []string {
	if pages > 1 {
		return []string{Left, Stop, Right}
	}
	return []string{Stop}
}
