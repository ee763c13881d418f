// # internal/parser/types.go
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceFile is the per-file symbol table produced by one parse pass.
// It is immutable once Build returns; content changes require a full
// re-parse.
type SourceFile struct {
	Path     string
	Package  string
	Lines    []string
	Imports  []Import
	Types    map[string]*TypeDecl // fully-qualified name -> declaration
	Failure  *ParseFailure
	ParsedAt time.Time
}

// Degraded reports whether the file failed to parse and carries an
// empty model. Downstream consumers treat a degraded model as "no
// information", not as an error.
func (f *SourceFile) Degraded() bool {
	return f.Failure != nil
}

// ImportedClasses maps simple names to their exact import paths.
// Wildcard and static imports are excluded; they cannot be resolved
// without analyzing the target package.
func (f *SourceFile) ImportedClasses() map[string]string {
	out := make(map[string]string)
	for _, imp := range f.Imports {
		if imp.Wildcard || imp.Static {
			continue
		}
		idx := strings.LastIndex(imp.Path, ".")
		if idx < 0 {
			continue
		}
		out[imp.Path[idx+1:]] = imp.Path
	}
	return out
}

// Type looks up a declaration by simple or fully-qualified name.
func (f *SourceFile) Type(name string) (*TypeDecl, bool) {
	if t, ok := f.Types[name]; ok {
		return t, true
	}
	if f.Package != "" && !strings.Contains(name, ".") {
		if t, ok := f.Types[f.Package+"."+name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Import is a single import declaration.
type Import struct {
	Path     string // full dotted path, without trailing ".*"
	Wildcard bool
	Static   bool
	Line     int
}

// TypeKind discriminates the declaration forms a TypeDecl can take.
type TypeKind int

const (
	KindClass TypeKind = iota
	KindInterface
	KindEnum
)

func (k TypeKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	default:
		return "class"
	}
}

// TypeDecl is one class, interface, or enum declaration. Nested
// declarations form a tree; inner types never hold back-pointers to
// their outer type.
type TypeDecl struct {
	Name       string
	Package    string
	Kind       TypeKind
	Abstract   bool
	StartLine  int
	EndLine    int
	Methods    map[string]*MethodDecl
	Fields     map[string]*VariableInfo
	Parent     string
	Interfaces []string
	Nested     []*TypeDecl
}

// FullName returns package-qualified name of the declaration.
func (t *TypeDecl) FullName() string {
	if t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

// Method returns a method by simple name. Overloads are stored under
// discriminated keys; the first overload wins on simple-name lookup.
func (t *TypeDecl) Method(name string) (*MethodDecl, bool) {
	if m, ok := t.Methods[name]; ok {
		return m, true
	}
	for key, m := range t.Methods {
		if strings.HasPrefix(key, name+"#") {
			return m, true
		}
	}
	return nil, false
}

// addMethod stores a method under a key that stays unique across
// overloads: the plain name for the first overload, name#arity after.
func (t *TypeDecl) addMethod(m *MethodDecl) {
	key := m.Name
	if _, taken := t.Methods[key]; taken {
		key = m.Name + "#" + strconv.Itoa(len(m.Params))
		for i := 2; ; i++ {
			if _, still := t.Methods[key]; !still {
				break
			}
			key = m.Name + "#" + strconv.Itoa(len(m.Params)) + "." + strconv.Itoa(i)
		}
	}
	t.Methods[key] = m
}

// Param is one ordered method parameter.
type Param struct {
	Name string
	Type string
}

// MethodDecl is a method or constructor declaration together with the
// local-variable table and call sites collected from its body.
type MethodDecl struct {
	Name       string
	Params     []Param
	ReturnType string
	Modifiers  []string
	StartLine  int
	EndLine    int
	Variables  map[string]*VariableInfo
	Calls      []MethodCallInfo
	Branches   int // branching nodes seen in the body, complexity proxy
}

// Variable resolves a name against the method's locals first, then its
// parameters, mirroring lexical precedence inside the body.
func (m *MethodDecl) Variable(name string) (*VariableInfo, bool) {
	if v, ok := m.Variables[name]; ok {
		return v, true
	}
	for _, p := range m.Params {
		if p.Name == name {
			return &VariableInfo{
				Name:        name,
				Type:        p.Type,
				IsParameter: true,
				IsUsed:      true,
				DeclLine:    m.StartLine,
			}, true
		}
	}
	return nil, false
}

// HasModifier reports whether the declaration carries the modifier.
func (m *MethodDecl) HasModifier(mod string) bool {
	for _, got := range m.Modifiers {
		if got == mod {
			return true
		}
	}
	return false
}

// VariableInfo tracks one declared variable, field, or parameter. The
// builder mutates the usage flags while walking statements; after the
// file model is finalized the struct is read-only.
type VariableInfo struct {
	Name        string
	Type        string
	IsField     bool
	IsParameter bool
	IsUsed      bool
	IsModified  bool
	DeclLine    int
	UsageLines  []int
}

func (v *VariableInfo) markUsed(line int) {
	v.IsUsed = true
	if line > 0 {
		v.UsageLines = append(v.UsageLines, line)
	}
}

// MethodCallInfo is one call site inside a method body.
type MethodCallInfo struct {
	Name     string
	Receiver string // resolved receiver type or raw qualifier, may be empty
	Args     []string
	Line     int
}

// ParseFailure records why a file could not be parsed. It is carried
// on the model as a value, never raised, so one broken file cannot
// abort a batch.
type ParseFailure struct {
	Path   string
	Line   int
	Reason string
}

func (p *ParseFailure) Error() string {
	if p.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", p.Path, p.Line, p.Reason)
	}
	return fmt.Sprintf("%s: %s", p.Path, p.Reason)
}
