// # internal/parser/java.go
package parser

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// JavaExtractor turns a tree-sitter parse tree into a SourceFile model.
// A tree with syntax errors yields a degraded model; a single broken
// declaration inside an otherwise clean tree is skipped on its own.
type JavaExtractor struct{}

func NewJavaExtractor() *JavaExtractor {
	return &JavaExtractor{}
}

func (e *JavaExtractor) Extract(root *sitter.Node, source []byte, filePath string) *SourceFile {
	if root == nil {
		return degradedFile(filePath, source, "tree-sitter returned no tree")
	}
	if root.HasError() {
		file := degradedFile(filePath, source, "syntax error")
		if failure := firstSyntaxFailure(root, filePath); failure != nil {
			file.Failure = failure
		}
		return file
	}

	file := &SourceFile{
		Path:     filePath,
		Lines:    strings.Split(string(source), "\n"),
		Types:    make(map[string]*TypeDecl),
		ParsedAt: time.Now(),
	}

	b := &javaBuilder{source: source, file: file}
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		switch child.Kind() {
		case "package_declaration":
			file.Package = b.packageName(child)
		case "import_declaration":
			if imp, ok := b.importDecl(child); ok {
				file.Imports = append(file.Imports, imp)
			}
		case "class_declaration", "interface_declaration", "enum_declaration":
			if decl := b.typeDecl(child, file.Package); decl != nil {
				b.register(decl, "")
			}
		}
	}
	return file
}

func degradedFile(path string, source []byte, reason string) *SourceFile {
	return &SourceFile{
		Path:     path,
		Lines:    strings.Split(string(source), "\n"),
		Types:    make(map[string]*TypeDecl),
		Failure:  &ParseFailure{Path: path, Reason: reason},
		ParsedAt: time.Now(),
	}
}

type javaBuilder struct {
	source []byte
	file   *SourceFile
}

func (b *javaBuilder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(b.source[n.StartByte():n.EndByte()])
}

func line(n *sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPosition().Row) + 1
}

// register stores a declaration and its nested types under their
// qualified names. Outer declarations register before inner ones, so
// on a duplicate name the first writer wins.
func (b *javaBuilder) register(decl *TypeDecl, outer string) {
	qualified := decl.Name
	if outer != "" {
		qualified = outer + "." + decl.Name
	}
	key := qualified
	if b.file.Package != "" {
		key = b.file.Package + "." + qualified
	}
	if _, taken := b.file.Types[key]; !taken {
		b.file.Types[key] = decl
	}
	for _, nested := range decl.Nested {
		b.register(nested, qualified)
	}
}

func (b *javaBuilder) packageName(n *sitter.Node) string {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() == "scoped_identifier" || child.Kind() == "identifier" {
			return b.text(child)
		}
	}
	return ""
}

func (b *javaBuilder) importDecl(n *sitter.Node) (Import, bool) {
	imp := Import{Line: line(n)}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "static":
			imp.Static = true
		case "asterisk":
			imp.Wildcard = true
		case "scoped_identifier", "identifier":
			imp.Path = b.text(child)
		}
	}
	if imp.Path == "" {
		return Import{}, false
	}
	return imp, true
}

func (b *javaBuilder) typeDecl(n *sitter.Node, pkg string) *TypeDecl {
	name := n.ChildByFieldName("name")
	if name == nil {
		return nil
	}

	decl := &TypeDecl{
		Name:      b.text(name),
		Package:   pkg,
		StartLine: line(n),
		EndLine:   endLine(n),
		Methods:   make(map[string]*MethodDecl),
		Fields:    make(map[string]*VariableInfo),
	}

	switch n.Kind() {
	case "interface_declaration":
		decl.Kind = KindInterface
	case "enum_declaration":
		decl.Kind = KindEnum
	default:
		decl.Kind = KindClass
	}

	for _, mod := range b.modifiers(n) {
		if mod == "abstract" {
			decl.Abstract = true
		}
	}

	if sup := n.ChildByFieldName("superclass"); sup != nil {
		// superclass wraps the type node behind the extends keyword
		for i := uint(0); i < sup.ChildCount(); i++ {
			child := sup.Child(i)
			if child.Kind() != "extends" {
				decl.Parent = b.text(child)
			}
		}
	}
	if ifaces := n.ChildByFieldName("interfaces"); ifaces != nil {
		decl.Interfaces = append(decl.Interfaces, b.typeList(ifaces)...)
	}
	// interfaces extend via the superclass-less extends_interfaces form
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() == "extends_interfaces" {
			decl.Interfaces = append(decl.Interfaces, b.typeList(child)...)
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return decl
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member.IsError() {
			continue
		}
		switch member.Kind() {
		case "field_declaration":
			b.fieldDecl(member, decl)
		case "method_declaration", "constructor_declaration":
			if m := b.methodDecl(member, decl); m != nil {
				decl.addMethod(m)
			}
		case "class_declaration", "interface_declaration", "enum_declaration":
			if nested := b.typeDecl(member, pkg); nested != nil {
				decl.Nested = append(decl.Nested, nested)
			}
		case "enum_body_declarations":
			for j := uint(0); j < member.ChildCount(); j++ {
				inner := member.Child(j)
				switch inner.Kind() {
				case "field_declaration":
					b.fieldDecl(inner, decl)
				case "method_declaration", "constructor_declaration":
					if m := b.methodDecl(inner, decl); m != nil {
						decl.addMethod(m)
					}
				}
			}
		}
	}
	return decl
}

func (b *javaBuilder) typeList(n *sitter.Node) []string {
	var out []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() == "type_list" {
			return b.typeList(child)
		}
		switch child.Kind() {
		case "type_identifier", "generic_type", "scoped_type_identifier":
			out = append(out, b.text(child))
		}
	}
	return out
}

func (b *javaBuilder) modifiers(n *sitter.Node) []string {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() != "modifiers" {
			continue
		}
		var mods []string
		for j := uint(0); j < child.ChildCount(); j++ {
			mod := child.Child(j)
			if mod.Kind() == "marker_annotation" || mod.Kind() == "annotation" {
				continue
			}
			mods = append(mods, b.text(mod))
		}
		return mods
	}
	return nil
}

func (b *javaBuilder) fieldDecl(n *sitter.Node, decl *TypeDecl) {
	typeName := b.text(n.ChildByFieldName("type"))
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() != "variable_declarator" {
			continue
		}
		name := child.ChildByFieldName("name")
		if name == nil {
			continue
		}
		field := &VariableInfo{
			Name:     b.text(name),
			Type:     typeName,
			IsField:  true,
			DeclLine: line(child),
		}
		if _, taken := decl.Fields[field.Name]; !taken {
			decl.Fields[field.Name] = field
		}
	}
}

func (b *javaBuilder) methodDecl(n *sitter.Node, owner *TypeDecl) *MethodDecl {
	name := n.ChildByFieldName("name")
	if name == nil {
		return nil
	}

	m := &MethodDecl{
		Name:      b.text(name),
		Modifiers: b.modifiers(n),
		StartLine: line(n),
		EndLine:   endLine(n),
		Variables: make(map[string]*VariableInfo),
	}
	if ret := n.ChildByFieldName("type"); ret != nil {
		m.ReturnType = b.text(ret)
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.ChildCount(); i++ {
			p := params.Child(i)
			if p.Kind() != "formal_parameter" && p.Kind() != "spread_parameter" {
				continue
			}
			pName := p.ChildByFieldName("name")
			if pName == nil {
				// spread_parameter keeps the declarator unlabeled
				for j := uint(0); j < p.ChildCount(); j++ {
					if p.Child(j).Kind() == "variable_declarator" {
						pName = p.Child(j).ChildByFieldName("name")
					}
				}
			}
			if pName == nil {
				continue
			}
			m.Params = append(m.Params, Param{
				Name: b.text(pName),
				Type: b.text(p.ChildByFieldName("type")),
			})
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		w := &bodyWalker{builder: b, method: m, owner: owner}
		scope := NewScope(nil)
		for _, p := range m.Params {
			scope.Add(&VariableInfo{
				Name:        p.Name,
				Type:        p.Type,
				IsParameter: true,
				DeclLine:    m.StartLine,
			})
		}
		w.walk(body, scope)
		// parameters tracked in the scope surface on the method table
		for _, p := range m.Params {
			if v, ok := scope.Lookup(p.Name); ok {
				if _, taken := m.Variables[p.Name]; !taken {
					m.Variables[p.Name] = v
				}
			}
		}
	}
	return m
}

// bodyWalker collects locals, usage marks, call sites, and branch
// counts from one method body. Scopes nest per block; lookups walk
// innermost first so shadowing resolves the way the language does.
type bodyWalker struct {
	builder *javaBuilder
	method  *MethodDecl
	owner   *TypeDecl
}

func (w *bodyWalker) walk(n *sitter.Node, scope *Scope) {
	switch n.Kind() {
	case "block":
		inner := NewScope(scope)
		for i := uint(0); i < n.ChildCount(); i++ {
			w.walk(n.Child(i), inner)
		}
		return

	case "local_variable_declaration":
		w.declareLocals(n, scope)
		return

	case "enhanced_for_statement":
		w.method.Branches++
		inner := NewScope(scope)
		if name := n.ChildByFieldName("name"); name != nil {
			w.declare(inner, &VariableInfo{
				Name:     w.builder.text(name),
				Type:     w.builder.text(n.ChildByFieldName("type")),
				DeclLine: line(name),
			})
		}
		if value := n.ChildByFieldName("value"); value != nil {
			w.walk(value, scope)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.walk(body, inner)
		}
		return

	case "for_statement":
		w.method.Branches++
		inner := NewScope(scope)
		for i := uint(0); i < n.ChildCount(); i++ {
			w.walk(n.Child(i), inner)
		}
		return

	case "catch_clause":
		w.method.Branches++
		inner := NewScope(scope)
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child.Kind() == "catch_formal_parameter" {
				if name := child.ChildByFieldName("name"); name != nil {
					w.declare(inner, &VariableInfo{
						Name:     w.builder.text(name),
						DeclLine: line(name),
					})
				}
				continue
			}
			w.walk(child, inner)
		}
		return

	case "if_statement", "while_statement", "do_statement", "ternary_expression":
		w.method.Branches++

	case "switch_label":
		if !strings.HasPrefix(w.builder.text(n), "default") {
			w.method.Branches++
		}

	case "method_invocation":
		w.recordCall(n, scope)
		if object := n.ChildByFieldName("object"); object != nil {
			w.walk(object, scope)
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			w.walk(args, scope)
		}
		return

	case "assignment_expression":
		w.recordAssignment(n, scope)
		return

	case "update_expression":
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child.Kind() == "identifier" {
				if v, ok := w.resolve(scope, w.builder.text(child)); ok {
					v.markUsed(line(child))
					v.IsModified = true
				}
			} else {
				w.walk(child, scope)
			}
		}
		return

	case "identifier":
		w.markIdentifier(n, scope)
		return

	case "field_access":
		w.markFieldAccess(n, scope)
		return

	case "lambda_expression":
		inner := NewScope(scope)
		if params := n.ChildByFieldName("parameters"); params != nil {
			w.declareLambdaParams(params, inner)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.walk(body, inner)
		}
		return
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		w.walk(n.Child(i), scope)
	}
}

func (w *bodyWalker) declareLocals(n *sitter.Node, scope *Scope) {
	typeName := w.builder.text(n.ChildByFieldName("type"))
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.Kind() != "variable_declarator" {
			continue
		}
		name := child.ChildByFieldName("name")
		if name == nil {
			continue
		}
		v := &VariableInfo{
			Name:     w.builder.text(name),
			Type:     typeName,
			DeclLine: line(name),
		}
		w.declare(scope, v)
		if value := child.ChildByFieldName("value"); value != nil {
			w.walk(value, scope)
		}
	}
}

func (w *bodyWalker) declare(scope *Scope, v *VariableInfo) {
	scope.Add(v)
	if _, taken := w.method.Variables[v.Name]; !taken {
		w.method.Variables[v.Name] = v
	}
}

func (w *bodyWalker) declareLambdaParams(params *sitter.Node, scope *Scope) {
	switch params.Kind() {
	case "identifier":
		w.declare(scope, &VariableInfo{
			Name:        w.builder.text(params),
			IsParameter: true,
			IsUsed:      true,
			DeclLine:    line(params),
		})
	default:
		for i := uint(0); i < params.ChildCount(); i++ {
			child := params.Child(i)
			switch child.Kind() {
			case "identifier":
				w.declare(scope, &VariableInfo{
					Name:        w.builder.text(child),
					IsParameter: true,
					IsUsed:      true,
					DeclLine:    line(child),
				})
			case "formal_parameter":
				if name := child.ChildByFieldName("name"); name != nil {
					w.declare(scope, &VariableInfo{
						Name:        w.builder.text(name),
						Type:        w.builder.text(child.ChildByFieldName("type")),
						IsParameter: true,
						IsUsed:      true,
						DeclLine:    line(name),
					})
				}
			}
		}
	}
}

// resolve finds a name through the scope chain first, then the owning
// type's fields.
func (w *bodyWalker) resolve(scope *Scope, name string) (*VariableInfo, bool) {
	if v, ok := scope.Lookup(name); ok {
		return v, true
	}
	if w.owner != nil {
		if f, ok := w.owner.Fields[name]; ok {
			return f, true
		}
	}
	return nil, false
}

func (w *bodyWalker) markIdentifier(n *sitter.Node, scope *Scope) {
	if v, ok := w.resolve(scope, w.builder.text(n)); ok {
		v.markUsed(line(n))
	}
}

func (w *bodyWalker) markFieldAccess(n *sitter.Node, scope *Scope) {
	object := n.ChildByFieldName("object")
	fieldName := n.ChildByFieldName("field")
	if object == nil {
		return
	}
	if object.Kind() == "this" {
		if w.owner != nil && fieldName != nil {
			if f, ok := w.owner.Fields[w.builder.text(fieldName)]; ok {
				f.markUsed(line(fieldName))
			}
		}
		return
	}
	// the qualifier is a read; the member past the dot is not ours
	w.walk(object, scope)
}

func (w *bodyWalker) recordCall(n *sitter.Node, scope *Scope) {
	call := MethodCallInfo{
		Name: w.builder.text(n.ChildByFieldName("name")),
		Line: line(n),
	}
	if object := n.ChildByFieldName("object"); object != nil {
		call.Receiver = w.builder.text(object)
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := uint(0); i < args.ChildCount(); i++ {
			arg := args.Child(i)
			switch arg.Kind() {
			case "(", ")", ",":
				continue
			}
			call.Args = append(call.Args, w.builder.text(arg))
		}
	}
	w.method.Calls = append(w.method.Calls, call)
}

func (w *bodyWalker) recordAssignment(n *sitter.Node, scope *Scope) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	operator := n.ChildByFieldName("operator")

	compound := operator != nil && w.builder.text(operator) != "="

	if left != nil {
		switch left.Kind() {
		case "identifier":
			if v, ok := w.resolve(scope, w.builder.text(left)); ok {
				v.IsModified = true
				// a plain write is not a read; compound ops are both
				if compound {
					v.markUsed(line(left))
				}
			}
		case "field_access":
			object := left.ChildByFieldName("object")
			fieldName := left.ChildByFieldName("field")
			if object != nil && object.Kind() == "this" && w.owner != nil && fieldName != nil {
				if f, ok := w.owner.Fields[w.builder.text(fieldName)]; ok {
					f.IsModified = true
					if compound {
						f.markUsed(line(fieldName))
					}
				}
			} else if object != nil {
				w.walk(object, scope)
			}
		default:
			w.walk(left, scope)
		}
	}
	if right != nil {
		w.walk(right, scope)
	}
}
