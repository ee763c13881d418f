// # internal/fix/handlers.go
package fix

import (
	"fmt"
	"regexp"
	"strings"

	"sonarfix/internal/parser"
	"sonarfix/internal/semantic"
)

// Rule ids with a built-in handler.
const (
	RuleBooleanLiteral     = "java:S1125"
	RuleCollectionSize     = "java:S1155"
	RuleSystemOut          = "java:S106"
	RuleEmptyCatch         = "java:S108"
	RuleCommentedCode      = "java:S125"
	RuleUtilityConstructor = "java:S1118"
	RuleUnusedLocal        = "java:S1481"
	RuleUnusedField        = "java:S1068"
	RuleComplexity         = "java:S3776"

	// alias kept for callers addressing the fix directly
	RuleRemoveUnusedLocal = "remove-unused-local"
)

func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		RuleBooleanLiteral:     fixBooleanLiteral,
		RuleCollectionSize:     fixCollectionSize,
		RuleSystemOut:          fixSystemOut,
		RuleEmptyCatch:         fixEmptyCatch,
		RuleCommentedCode:      fixCommentedCode,
		RuleUtilityConstructor: fixUtilityConstructor,
		RuleUnusedLocal:        fixUnusedLocal,
		RuleRemoveUnusedLocal:  fixUnusedLocal,
		RuleUnusedField:        flagUnusedField,
		RuleComplexity:         flagComplexMethod,
	}
}

var boolLiteralPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\w[\w.()\[\]]*)\s*==\s*true\b`), "$1"},
	{regexp.MustCompile(`\btrue\s*==\s*(\w[\w.()\[\]]*)`), "$1"},
	{regexp.MustCompile(`(\w[\w.()\[\]]*)\s*!=\s*false\b`), "$1"},
	{regexp.MustCompile(`\bfalse\s*!=\s*(\w[\w.()\[\]]*)`), "$1"},
	{regexp.MustCompile(`(\w[\w.()\[\]]*)\s*==\s*false\b`), "!$1"},
	{regexp.MustCompile(`\bfalse\s*==\s*(\w[\w.()\[\]]*)`), "!$1"},
	{regexp.MustCompile(`(\w[\w.()\[\]]*)\s*!=\s*true\b`), "!$1"},
	{regexp.MustCompile(`\btrue\s*!=\s*(\w[\w.()\[\]]*)`), "!$1"},
}

// fixBooleanLiteral drops redundant comparisons against boolean
// literals on the finding's line, keeping the expression's polarity.
func fixBooleanLiteral(req *Request) (string, error) {
	lines := req.Lines()
	idx := req.Finding.Line - 1
	if idx < 0 || idx >= len(lines) {
		return req.Text, nil
	}

	for _, p := range boolLiteralPatterns {
		if p.re.MatchString(lines[idx]) {
			lines[idx] = p.re.ReplaceAllString(lines[idx], p.repl)
			return strings.Join(lines, "\n"), nil
		}
	}
	return req.Text, nil
}

var collectionSizePatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\w[\w.]*)\.size\(\)\s*==\s*0`), "$1.isEmpty()"},
	{regexp.MustCompile(`0\s*==\s*(\w[\w.]*)\.size\(\)`), "$1.isEmpty()"},
	{regexp.MustCompile(`(\w[\w.]*)\.size\(\)\s*>\s*0`), "!$1.isEmpty()"},
	{regexp.MustCompile(`(\w[\w.]*)\.size\(\)\s*>=\s*1`), "!$1.isEmpty()"},
	{regexp.MustCompile(`0\s*<\s*(\w[\w.]*)\.size\(\)`), "!$1.isEmpty()"},
	{regexp.MustCompile(`(\w[\w.]*)\.size\(\)\s*!=\s*0`), "!$1.isEmpty()"},
	{regexp.MustCompile(`0\s*!=\s*(\w[\w.]*)\.size\(\)`), "!$1.isEmpty()"},
}

// fixCollectionSize rewrites size() comparisons against zero into
// isEmpty() calls. Lines carrying comments or string literals are
// left alone rather than risking a rewrite inside text.
func fixCollectionSize(req *Request) (string, error) {
	lines := req.Lines()
	changed := false
	for i, line := range lines {
		if strings.ContainsAny(line, `"'`) || strings.Contains(line, "//") {
			continue
		}
		for _, p := range collectionSizePatterns {
			if p.re.MatchString(lines[i]) {
				lines[i] = p.re.ReplaceAllString(lines[i], p.repl)
				changed = true
			}
		}
	}
	if !changed {
		return req.Text, nil
	}
	return strings.Join(lines, "\n"), nil
}

var systemOutRe = regexp.MustCompile(`System\.out\.print(?:ln)?\((.*)\);`)

// fixSystemOut replaces console printing with an slf4j logger call,
// adding the imports and the LOGGER field when missing. Field before
// imports: the field insert indexes into the unshifted line layout.
func fixSystemOut(req *Request) (string, error) {
	if !systemOutRe.MatchString(req.Text) {
		return req.Text, nil
	}
	decl := firstTopLevelType(req.Model)
	if decl == nil {
		return req.Text, nil
	}

	text := systemOutRe.ReplaceAllString(req.Text, "LOGGER.info($1);")
	lines := strings.Split(text, "\n")

	if !strings.Contains(text, "Logger LOGGER") {
		brace := findOpeningBrace(lines, decl.StartLine-1)
		if brace < 0 {
			return req.Text, nil
		}
		indent := leadingWhitespace(lines[brace]) + "    "
		field := fmt.Sprintf("%sprivate static final Logger LOGGER = LoggerFactory.getLogger(%s.class);",
			indent, decl.Name)
		lines = insertLines(lines, brace+1, []string{field, ""})
	}

	if !strings.Contains(text, "import org.slf4j.Logger;") {
		at := importInsertIndex(lines)
		lines = insertLines(lines, at, []string{
			"import org.slf4j.Logger;",
			"import org.slf4j.LoggerFactory;",
		})
	}

	return strings.Join(lines, "\n"), nil
}

var emptyCatchRe = regexp.MustCompile(`catch\s*\(([^()]*)\)\s*\{\s*\}`)

// fixEmptyCatch fills single-line empty catch blocks with an
// explanatory comment, which is what the rule asks for at minimum.
func fixEmptyCatch(req *Request) (string, error) {
	lines := req.Lines()
	changed := false
	for i, line := range lines {
		m := emptyCatchRe.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		indent := leadingWhitespace(line)
		params := line[m[2]:m[3]]
		replacement := fmt.Sprintf("catch (%s) {\n%s    // TODO: handle this exception instead of swallowing it\n%s}",
			params, indent, indent)
		lines[i] = line[:m[0]] + replacement + line[m[1]:]
		changed = true
	}
	if !changed {
		return req.Text, nil
	}
	return strings.Join(lines, "\n"), nil
}

// fixCommentedCode deletes line comments that look like disabled code
// while keeping annotations like TODO or FIXME and anything inside
// block comments.
func fixCommentedCode(req *Request) (string, error) {
	lines := req.Lines()
	var kept []string
	changed := false
	inBlock := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if inBlock {
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			kept = append(kept, line)
			continue
		}
		if strings.Contains(trimmed, "/*") && !strings.Contains(trimmed, "*/") {
			inBlock = true
			kept = append(kept, line)
			continue
		}
		if looksLikeDisabledCode(trimmed) {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	if !changed {
		return req.Text, nil
	}
	return strings.Join(kept, "\n"), nil
}

func looksLikeDisabledCode(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "//") || len(trimmed) <= 3 {
		return false
	}
	for _, keep := range []string{"TODO", "FIXME", "NOTE"} {
		if strings.Contains(trimmed, keep) {
			return false
		}
	}
	return strings.ContainsAny(trimmed, ";{}")
}

// fixUtilityConstructor adds a throwing private constructor to a
// class holding only static methods. Driven by the model, not text
// matching: classes with any constructor or instance method are left
// alone.
func fixUtilityConstructor(req *Request) (string, error) {
	decl := firstTopLevelType(req.Model)
	if decl == nil || decl.Kind != parser.KindClass || len(decl.Methods) == 0 {
		return req.Text, nil
	}
	for _, m := range decl.Methods {
		if m.Name == decl.Name {
			return req.Text, nil // already has a constructor
		}
		if !m.HasModifier("static") {
			return req.Text, nil
		}
	}

	lines := req.Lines()
	brace := findOpeningBrace(lines, decl.StartLine-1)
	if brace < 0 {
		return req.Text, nil
	}
	indent := leadingWhitespace(lines[brace]) + "    "
	ctor := []string{
		"",
		fmt.Sprintf("%sprivate %s() {", indent, decl.Name),
		fmt.Sprintf("%s    throw new UnsupportedOperationException(\"Utility class\");", indent),
		indent + "}",
	}
	return strings.Join(insertLines(lines, brace+1, ctor), "\n"), nil
}

// fixUnusedLocal removes the declaration of a never-read local,
// initializer included. Only a line holding nothing but the
// declaration is deleted; declarations sharing a line with other
// statements stay for the repairer.
func fixUnusedLocal(req *Request) (string, error) {
	target := unusedAtLine(req.Summary.UnusedLocals, req.Finding.Line)
	if target == nil {
		return req.Text, nil
	}

	lines := req.Lines()
	idx := target.DeclLine - 1
	if idx < 0 || idx >= len(lines) {
		return req.Text, nil
	}

	declRe := regexp.MustCompile(
		`^[\w<>\[\],.\s]+\s` + regexp.QuoteMeta(target.Name) + `\s*(=\s*[^;]*)?;$`)
	if !declRe.MatchString(strings.TrimSpace(lines[idx])) {
		return req.Text, nil
	}

	return strings.Join(append(lines[:idx], lines[idx+1:]...), "\n"), nil
}

// flagUnusedField leaves a marker above a never-read field so the
// removal shows up in review instead of silently changing the class
// surface, which other files may touch reflectively.
func flagUnusedField(req *Request) (string, error) {
	target := unusedAtLine(req.Summary.UnusedFields, req.Finding.Line)
	if target == nil {
		return req.Text, nil
	}

	lines := req.Lines()
	idx := target.DeclLine - 1
	if idx < 0 || idx >= len(lines) {
		return req.Text, nil
	}

	marker := leadingWhitespace(lines[idx]) + "// TODO: remove this unused field"
	if idx > 0 && strings.TrimSpace(lines[idx-1]) == strings.TrimSpace(marker) {
		return req.Text, nil
	}
	return strings.Join(insertLines(lines, idx, []string{marker}), "\n"), nil
}

// flagComplexMethod marks the method covering the finding for a
// refactor. Splitting a method safely needs human judgement; the
// marker keeps the finding visible in the source.
func flagComplexMethod(req *Request) (string, error) {
	var method *parser.MethodDecl
	for _, decl := range req.Model.Types {
		for _, m := range decl.Methods {
			if m.StartLine <= req.Finding.Line && req.Finding.Line <= m.EndLine {
				method = m
			}
		}
	}
	if method == nil {
		return req.Text, nil
	}

	lines := req.Lines()
	idx := method.StartLine - 1
	if idx < 0 || idx >= len(lines) {
		return req.Text, nil
	}

	marker := leadingWhitespace(lines[idx]) + "// TODO: refactor to reduce cognitive complexity"
	if idx > 0 && strings.TrimSpace(lines[idx-1]) == strings.TrimSpace(marker) {
		return req.Text, nil
	}
	return strings.Join(insertLines(lines, idx, []string{marker}), "\n"), nil
}

// unusedAtLine picks the finding's variable by declaration line, or
// the first reported one when the line does not pin a match.
func unusedAtLine(vars []semantic.UnusedVariable, line int) *semantic.UnusedVariable {
	for i := range vars {
		if vars[i].DeclLine == line {
			return &vars[i]
		}
	}
	if line == 0 && len(vars) > 0 {
		return &vars[0]
	}
	return nil
}

func firstTopLevelType(model *parser.SourceFile) *parser.TypeDecl {
	var first *parser.TypeDecl
	for key, decl := range model.Types {
		// nested declarations carry their outer type in the key
		if strings.Contains(strings.TrimPrefix(key, model.Package+"."), ".") {
			continue
		}
		if first == nil || decl.StartLine < first.StartLine {
			first = decl
		}
	}
	return first
}

func findOpeningBrace(lines []string, from int) int {
	for i := from; i >= 0 && i < len(lines); i++ {
		if strings.Contains(lines[i], "{") {
			return i
		}
	}
	return -1
}

func importInsertIndex(lines []string) int {
	at := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") || strings.HasPrefix(trimmed, "import ") {
			at = i + 1
		}
	}
	return at
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func insertLines(lines []string, at int, add []string) []string {
	out := make([]string, 0, len(lines)+len(add))
	out = append(out, lines[:at]...)
	out = append(out, add...)
	out = append(out, lines[at:]...)
	return out
}
