// # internal/semantic/semantic.go

// Package semantic derives review-ready facts from a parsed file
// model: unused locals, parameters and fields, a call index, and a
// per-method complexity figure. Summarize is a pure function of the
// model; it never re-reads source and never mutates its input.
package semantic

import (
	"sort"
	"strings"

	"sonarfix/internal/parser"
)

// Summary is the analysis result for one file.
type Summary struct {
	Path          string
	Degraded      bool
	UnusedLocals  []UnusedVariable
	UnusedParams  []UnusedVariable
	UnusedFields  []UnusedVariable
	Calls         CallIndex
	Methods       []MethodComplexity
	MaxComplexity int
	SumComplexity int
}

// UnusedVariable names one declared-but-never-read variable.
type UnusedVariable struct {
	Name     string
	Type     string
	Owner    string // qualified type name, plus ".method" for non-fields
	DeclLine int
	Written  bool // assigned after declaration, still never read
}

// CallIndex maps a callee name to every site that invokes it.
type CallIndex map[string][]CallSite

type CallSite struct {
	Caller   string // qualified type name + "." + method
	Receiver string
	Line     int
}

// MethodComplexity is the branch-count proxy for one method:
// 1 + branching nodes in the body.
type MethodComplexity struct {
	Owner      string
	Method     string
	StartLine  int
	Complexity int
}

// Summarize analyzes one file model. A degraded model produces an
// empty summary with Degraded set; downstream consumers skip it
// instead of failing.
func Summarize(file *parser.SourceFile) *Summary {
	s := &Summary{
		Path:  file.Path,
		Calls: make(CallIndex),
	}
	if file.Degraded() {
		s.Degraded = true
		return s
	}

	for _, qualified := range sortedKeys(file.Types) {
		decl := file.Types[qualified]
		summarizeType(s, qualified, decl)
	}

	sort.Slice(s.Methods, func(i, j int) bool {
		return s.Methods[i].StartLine < s.Methods[j].StartLine
	})
	return s
}

func summarizeType(s *Summary, qualified string, decl *parser.TypeDecl) {
	for _, name := range sortedKeys(decl.Fields) {
		field := decl.Fields[name]
		if reported(field) {
			s.UnusedFields = append(s.UnusedFields, UnusedVariable{
				Name:     field.Name,
				Type:     field.Type,
				Owner:    qualified,
				DeclLine: field.DeclLine,
				Written:  field.IsModified,
			})
		}
	}

	for _, key := range sortedKeys(decl.Methods) {
		method := decl.Methods[key]
		owner := qualified + "." + method.Name

		for _, name := range sortedKeys(method.Variables) {
			v := method.Variables[name]
			if !reported(v) {
				continue
			}
			entry := UnusedVariable{
				Name:     v.Name,
				Type:     v.Type,
				Owner:    owner,
				DeclLine: v.DeclLine,
				Written:  v.IsModified,
			}
			if v.IsParameter {
				s.UnusedParams = append(s.UnusedParams, entry)
			} else {
				s.UnusedLocals = append(s.UnusedLocals, entry)
			}
		}

		for _, call := range method.Calls {
			s.Calls[call.Name] = append(s.Calls[call.Name], CallSite{
				Caller:   owner,
				Receiver: call.Receiver,
				Line:     call.Line,
			})
		}

		complexity := 1 + method.Branches
		s.Methods = append(s.Methods, MethodComplexity{
			Owner:      qualified,
			Method:     method.Name,
			StartLine:  method.StartLine,
			Complexity: complexity,
		})
		s.SumComplexity += complexity
		if complexity > s.MaxComplexity {
			s.MaxComplexity = complexity
		}
	}
}

// reported filters out used variables and names opting out via the
// underscore prefix convention.
func reported(v *parser.VariableInfo) bool {
	return !v.IsUsed && !strings.HasPrefix(v.Name, "_")
}

// CalledFrom lists every caller of name, deduplicated.
func (s *Summary) CalledFrom(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, site := range s.Calls[name] {
		if seen[site.Caller] {
			continue
		}
		seen[site.Caller] = true
		out = append(out, site.Caller)
	}
	sort.Strings(out)
	return out
}

// OverComplexity returns methods whose complexity exceeds the limit.
func (s *Summary) OverComplexity(limit int) []MethodComplexity {
	var out []MethodComplexity
	for _, m := range s.Methods {
		if m.Complexity > limit {
			out = append(out, m)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
