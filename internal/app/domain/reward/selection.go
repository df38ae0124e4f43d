package reward

// State is the selection state machine's current state.
type State string

const (
	// StateLocked means the cart unlocks nothing; the picker is hidden.
	StateLocked State = "locked"
	// StateSelecting means 0 <= selected <= maxAllowed.
	StateSelecting State = "selecting"
)

// Selection tracks the free products a shopper has picked. It has no
// terminal state: SetMaxAllowed re-evaluates it whenever the cart changes.
// Selection is not safe for concurrent use.
type Selection struct {
	maxAllowed int
	selected   []string
}

// NewSelection starts an empty selection with the given allowance.
func NewSelection(maxAllowed int) *Selection {
	if maxAllowed < 0 {
		maxAllowed = 0
	}
	return &Selection{maxAllowed: maxAllowed}
}

// Restore rebuilds a selection from previously selected ids, keeping the
// earliest picks when there are more than maxAllowed. Duplicates and empty
// ids are skipped.
func Restore(maxAllowed int, selected []string) *Selection {
	s := NewSelection(maxAllowed)
	for _, id := range selected {
		if id == "" || s.index(id) >= 0 {
			continue
		}
		if len(s.selected) >= s.maxAllowed {
			break
		}
		s.selected = append(s.selected, id)
	}
	return s
}

// Toggle deselects id when already selected, otherwise selects it if the
// allowance permits. It reports whether the toggle was applied.
func (s *Selection) Toggle(id string) bool {
	if i := s.index(id); i >= 0 {
		s.selected = append(s.selected[:i], s.selected[i+1:]...)
		return true
	}
	if id == "" || len(s.selected) >= s.maxAllowed {
		return false
	}
	s.selected = append(s.selected, id)
	return true
}

// SetMaxAllowed applies a new allowance, dropping the most recent picks
// that no longer fit.
func (s *Selection) SetMaxAllowed(maxAllowed int) {
	if maxAllowed < 0 {
		maxAllowed = 0
	}
	s.maxAllowed = maxAllowed
	if len(s.selected) > maxAllowed {
		s.selected = s.selected[:maxAllowed]
	}
}

// MaxAllowed returns the current allowance.
func (s *Selection) MaxAllowed() int { return s.maxAllowed }

// Count returns the number of selected products.
func (s *Selection) Count() int { return len(s.selected) }

// IsSelected reports whether id is currently selected.
func (s *Selection) IsSelected(id string) bool { return s.index(id) >= 0 }

// Selected returns the selected ids in selection order.
func (s *Selection) Selected() []string {
	out := make([]string, len(s.selected))
	copy(out, s.selected)
	return out
}

// State returns locked when nothing can be selected.
func (s *Selection) State() State {
	if s.maxAllowed == 0 {
		return StateLocked
	}
	return StateSelecting
}

func (s *Selection) index(id string) int {
	for i, v := range s.selected {
		if v == id {
			return i
		}
	}
	return -1
}
