package chat

// RetrySlot holds at most one PendingAction. Recording overwrites; taking clears.
type RetrySlot struct {
	action *PendingAction
}

func (s *RetrySlot) Record(a PendingAction) {
	s.action = &a
}

// Take returns the recorded action and empties the slot.
func (s *RetrySlot) Take() (PendingAction, bool) {
	if s.action == nil {
		return PendingAction{}, false
	}
	a := *s.action
	s.action = nil
	return a, true
}

func (s *RetrySlot) Peek() (PendingAction, bool) {
	if s.action == nil {
		return PendingAction{}, false
	}
	return *s.action, true
}

func (s *RetrySlot) Clear() {
	s.action = nil
}
