package app

// Navigator tracks the current question index, bounded to [0, total-1].
type Navigator struct {
	index int
	total int
}

func NewNavigator(total int) *Navigator {
	return &Navigator{total: total}
}

func (n *Navigator) Index() int { return n.index }

func (n *Navigator) Total() int { return n.total }

// Advance moves forward, staying on the last question.
func (n *Navigator) Advance() int {
	return n.JumpTo(n.index + 1)
}

// Retreat moves back, staying on the first question.
func (n *Navigator) Retreat() int {
	return n.JumpTo(n.index - 1)
}

// JumpTo moves to index, clamped into range.
func (n *Navigator) JumpTo(index int) int {
	last := n.total - 1
	if index > last {
		index = last
	}
	if index < 0 {
		index = 0
	}
	n.index = index
	return n.index
}
