package emu

// ArgSupply hands out the caller's arguments front to back, one per POP.
type ArgSupply struct {
	args []uint32
	next int
}

// Reset replaces the supply and rewinds it.
func (s *ArgSupply) Reset(args []uint32) {
	s.args = args
	s.next = 0
}

// Next consumes the next argument.
func (s *ArgSupply) Next() (uint32, error) {
	if s.next >= len(s.args) {
		return 0, &ArgumentSupplyExhaustedError{Supplied: len(s.args)}
	}
	v := s.args[s.next]
	s.next++
	return v, nil
}

// Remaining returns how many arguments are still unconsumed.
func (s *ArgSupply) Remaining() int {
	return len(s.args) - s.next
}
