// # internal/resolver/resolver.go
package resolver

import (
	"strings"

	"sonarfix/internal/parser"
)

// UnresolvedType is the placeholder for type expressions the resolver
// cannot name at all. Plain unknown simple names fall back to
// themselves instead; only structurally unusable input lands here.
const UnresolvedType = "UnresolvedType"

// Resolver turns simple type names from one compilation unit into
// fully qualified names. Lookup is layered: builtins, then exact
// imports, then same-package declarations, then wildcard imports
// checked against the project class index, then the literal name.
type Resolver struct {
	file      *parser.SourceFile
	imports   map[string]string // simple name -> exact import path
	local     map[string]string // simple name -> same-file qualified name
	wildcards []string          // wildcard import package prefixes
	known     map[string]bool   // project-wide fully qualified names
}

// NewResolver builds a resolver for one file. known holds every fully
// qualified type name the project declares; it backs wildcard-import
// resolution and may be nil.
func NewResolver(file *parser.SourceFile, known map[string]bool) *Resolver {
	r := &Resolver{
		file:    file,
		imports: file.ImportedClasses(),
		local:   make(map[string]string),
		known:   known,
	}
	for _, imp := range file.Imports {
		if imp.Wildcard && !imp.Static {
			r.wildcards = append(r.wildcards, imp.Path)
		}
	}
	for qualified := range file.Types {
		idx := strings.LastIndex(qualified, ".")
		simple := qualified
		if idx >= 0 {
			simple = qualified[idx+1:]
		}
		if _, taken := r.local[simple]; !taken {
			r.local[simple] = qualified
		}
	}
	return r
}

// Resolve maps one type expression to its fully qualified form.
// Generic arguments, array suffixes, and wildcard bounds resolve
// recursively. Resolve never fails; an unknown simple name resolves
// to itself.
func (r *Resolver) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnresolvedType
	}

	// arrays: resolve the element, keep the suffix
	if strings.HasSuffix(name, "[]") {
		return r.Resolve(strings.TrimSuffix(name, "[]")) + "[]"
	}

	// wildcard bounds: ? extends X / ? super X
	if name == "?" {
		return "?"
	}
	if rest, ok := strings.CutPrefix(name, "? extends "); ok {
		return "? extends " + r.Resolve(rest)
	}
	if rest, ok := strings.CutPrefix(name, "? super "); ok {
		return "? super " + r.Resolve(rest)
	}

	// generics: resolve the base and each argument
	if open := strings.IndexByte(name, '<'); open >= 0 {
		if !strings.HasSuffix(name, ">") {
			return UnresolvedType
		}
		base := r.Resolve(name[:open])
		args := splitTypeArgs(name[open+1 : len(name)-1])
		for i, arg := range args {
			args[i] = r.Resolve(arg)
		}
		return base + "<" + strings.Join(args, ", ") + ">"
	}

	// already qualified names pass through
	if strings.Contains(name, ".") {
		return name
	}

	return r.resolveSimple(name)
}

// Base strips generic arguments and array suffixes and resolves what
// remains. "List<String>[]" resolves to java.util.List.
func (r *Resolver) Base(name string) string {
	name = strings.TrimSpace(name)
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSuffix(name, "[]")
	}
	if open := strings.IndexByte(name, '<'); open >= 0 {
		name = name[:open]
	}
	if name == "" || name == "?" {
		return UnresolvedType
	}
	if strings.Contains(name, ".") {
		return name
	}
	return r.resolveSimple(name)
}

func (r *Resolver) resolveSimple(name string) string {
	if full, ok := javaBuiltins[name]; ok {
		return full
	}
	if full, ok := r.imports[name]; ok {
		return full
	}
	if full, ok := r.local[name]; ok {
		return full
	}
	if r.file.Package != "" {
		samePkg := r.file.Package + "." + name
		if r.known[samePkg] {
			return samePkg
		}
	}
	for _, prefix := range r.wildcards {
		candidate := prefix + "." + name
		if r.known[candidate] {
			return candidate
		}
	}
	if full, ok := javaCommon[name]; ok {
		return full
	}
	return name
}

// splitTypeArgs splits a generic argument list at top-level commas,
// leaving nested argument lists intact.
func splitTypeArgs(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
