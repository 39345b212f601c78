package chip8

// SymbolTable maps label names to the 12-bit address they were defined
// at. It exists for the duration of one assembly run (§3 "Lifecycles"),
// built in pass one and consulted in pass two.
type SymbolTable struct {
	addr map[string]uint16
}

// NewSymbolTable returns an empty SymbolTable.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{addr: make(map[string]uint16)}
}

// Define records name at address. It reports false if name is already
// defined (a duplicate-label hard error, per §4.4 pass one).
func (s *SymbolTable) Define(name string, address uint16) bool {
	if _, exists := s.addr[name]; exists {
		return false
	}
	s.addr[name] = address
	return true
}

// Lookup returns the address bound to name, if any.
func (s *SymbolTable) Lookup(name string) (uint16, bool) {
	a, ok := s.addr[name]
	return a, ok
}
