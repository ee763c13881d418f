// # internal/parser/parser.go
package parser

import (
	"errors"
	"fmt"
	"path/filepath"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	loader     *GrammarLoader
	extractors map[string]Extractor // language -> extractor
}

type Extractor interface {
	Extract(node *sitter.Node, source []byte, filePath string) *SourceFile
}

func NewParser(loader *GrammarLoader) *Parser {
	return &Parser{
		loader:     loader,
		extractors: make(map[string]Extractor),
	}
}

func (p *Parser) RegisterExtractor(lang string, e Extractor) {
	p.extractors[lang] = e
}

// ParseFile builds the symbol-table model for one file. Syntactically
// broken input never produces an error: the returned model is degraded
// (empty maps, Failure set) and the pipeline stays total. The error
// return covers configuration problems only, such as an extension no
// extractor is registered for.
func (p *Parser) ParseFile(path string, content []byte) (*SourceFile, error) {
	lang := p.detectLanguage(path)
	if lang == "" {
		return nil, errors.New("unsupported language")
	}

	grammar := p.loader.Language(lang)
	if grammar == nil {
		return nil, fmt.Errorf("grammar not loaded: %s", lang)
	}

	extractor := p.extractors[lang]
	if extractor == nil {
		return nil, fmt.Errorf("no extractor for: %s", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return degradedFile(path, content, "tree-sitter returned no tree"), nil
	}
	defer tree.Close()

	return extractor.Extract(tree.RootNode(), content, path), nil
}

// Check re-parses content and reports the first syntax failure, or nil
// when the source is well formed. The fix dispatch engine uses this as
// its validation gate; handler output that fails Check is rejected.
func (p *Parser) Check(path string, content []byte) *ParseFailure {
	grammar := p.loader.Language(p.detectLanguage(path))
	if grammar == nil {
		grammar = p.loader.Language("java")
	}
	if grammar == nil {
		return &ParseFailure{Path: path, Reason: "no grammar available"}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return &ParseFailure{Path: path, Reason: "tree-sitter returned no tree"}
	}
	defer tree.Close()

	return firstSyntaxFailure(tree.RootNode(), path)
}

func (p *Parser) detectLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".java":
		return "java"
	default:
		return ""
	}
}

// firstSyntaxFailure walks the tree for the first ERROR or MISSING
// node. Returns nil for a clean tree.
func firstSyntaxFailure(root *sitter.Node, path string) *ParseFailure {
	if !root.HasError() {
		return nil
	}

	var find func(n *sitter.Node) *sitter.Node
	find = func(n *sitter.Node) *sitter.Node {
		if n.IsError() || n.IsMissing() {
			return n
		}
		if !n.HasError() {
			return nil
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if hit := find(n.Child(i)); hit != nil {
				return hit
			}
		}
		return nil
	}

	reason := "syntax error"
	line := 0
	if hit := find(root); hit != nil {
		line = int(hit.StartPosition().Row) + 1
		if hit.IsMissing() {
			reason = "missing " + hit.Kind()
		}
	}
	return &ParseFailure{Path: path, Line: line, Reason: reason}
}
