// Package output renders the tracked dependency graph for external
// tooling.
package output

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"sonarfix/internal/graph"
)

type DOTGenerator struct {
	tracker *graph.Tracker
}

func NewDOTGenerator(t *graph.Tracker) *DOTGenerator {
	return &DOTGenerator{tracker: t}
}

// Generate renders the file dependency graph, highlighting files that
// take part in a cycle and files with degraded parses.
func (d *DOTGenerator) Generate(cycles [][]string) (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.5;\n")
	buf.WriteString("  nodesep=0.6;\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	cycleEdges := make(map[string]map[string]bool)
	cycleNodes := make(map[string]bool)
	for _, cycle := range cycles {
		for i := 0; i < len(cycle); i++ {
			from := cycle[i]
			to := cycle[(i+1)%len(cycle)]
			if cycleEdges[from] == nil {
				cycleEdges[from] = make(map[string]bool)
			}
			cycleEdges[from][to] = true
			cycleNodes[from] = true
		}
	}

	paths := d.tracker.Files()
	for _, path := range paths {
		model, ok := d.tracker.File(path)
		if !ok {
			continue
		}
		label := fmt.Sprintf("%s\\n(%s, %d types)", filepath.Base(path), model.Package, len(model.Types))
		switch {
		case cycleNodes[path]:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"mistyrose\", color=\"red\", style=\"rounded,filled\", penwidth=2.0];\n", path, label))
		case model.Failure != nil:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"lightyellow\", color=\"goldenrod\", style=\"rounded,filled\"];\n", path, label))
		default:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", color=\"darkslategrey\"];\n", path, label))
		}
	}
	buf.WriteString("\n")

	for _, from := range paths {
		targets := d.tracker.Dependencies(from)
		sort.Strings(targets)
		for _, to := range targets {
			if cycleEdges[from] != nil && cycleEdges[from][to] {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", from, to))
			} else {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"forestgreen\", penwidth=1.8];\n", from, to))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}
