package output

import (
	"fmt"
	"strings"

	"sonarfix/internal/graph"
	"sonarfix/internal/semantic"
)

type TSVGenerator struct {
	tracker *graph.Tracker
}

func NewTSVGenerator(t *graph.Tracker) *TSVGenerator {
	return &TSVGenerator{tracker: t}
}

// Generate emits one row per dependency edge.
func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("From\tTo\tPackage\n")
	for _, from := range t.tracker.Files() {
		model, ok := t.tracker.File(from)
		if !ok {
			continue
		}
		for _, to := range t.tracker.Dependencies(from) {
			buf.WriteString(fmt.Sprintf("%s\t%s\t%s\n", from, to, model.Package))
		}
	}

	return buf.String(), nil
}

// GenerateUnused emits one row per unused variable across the tracked
// files.
func (t *TSVGenerator) GenerateUnused() (string, error) {
	var buf strings.Builder

	buf.WriteString("Type\tFile\tOwner\tName\tVarType\tLine\tWritten\n")
	for _, path := range t.tracker.Files() {
		model, ok := t.tracker.File(path)
		if !ok {
			continue
		}
		summary := semantic.Summarize(model)
		writeUnusedRows(&buf, "unused_local", path, summary.UnusedLocals)
		writeUnusedRows(&buf, "unused_param", path, summary.UnusedParams)
		writeUnusedRows(&buf, "unused_field", path, summary.UnusedFields)
	}

	return buf.String(), nil
}

func writeUnusedRows(buf *strings.Builder, kind, path string, vars []semantic.UnusedVariable) {
	for _, u := range vars {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%d\t%t\n",
			kind, path, u.Owner, u.Name, u.Type, u.DeclLine, u.Written))
	}
}
