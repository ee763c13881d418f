// # internal/parser/scope.go
package parser

// Scope is one lexical variable-visibility context. Lookup walks
// innermost to outermost and stops at the first match, which gives
// standard shadowing semantics.
type Scope struct {
	vars   map[string]*VariableInfo
	parent *Scope
}

func NewScope(parent *Scope) *Scope {
	return &Scope{
		vars:   make(map[string]*VariableInfo),
		parent: parent,
	}
}

func (s *Scope) Add(v *VariableInfo) {
	s.vars[v.Name] = v
}

func (s *Scope) Lookup(name string) (*VariableInfo, bool) {
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return nil, false
}
