// # internal/graph/tracker_test.go
package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sonarfix/internal/parser"
)

func newTracker(t *testing.T, opts ...Option) *Tracker {
	t.Helper()
	p := parser.NewParser(parser.NewGrammarLoader())
	p.RegisterExtractor("java", parser.NewJavaExtractor())
	return NewTracker(p, opts...)
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildFixture(t *testing.T) (*Tracker, string, map[string]string) {
	t.Helper()
	root := t.TempDir()

	paths := map[string]string{
		"util": writeFile(t, root, "util/Util.java", `package com.acme.util;

public class Util {
    public static String greet(String name) {
        return "hi " + name;
    }
}
`),
		"app": writeFile(t, root, "app/App.java", `package com.acme.app;

import com.acme.util.Util;

public class App {
    public String run() {
        return Util.greet("app");
    }
}
`),
		"main": writeFile(t, root, "main/Main.java", `package com.acme.main;

import com.acme.app.App;

public class Main {
    public static void main(String[] args) {
        App app = new App();
        app.run();
    }
}
`),
	}

	tr := newTracker(t)
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}
	return tr, root, paths
}

func TestBuildProjectEdges(t *testing.T) {
	tr, _, paths := buildFixture(t)

	if tr.FileCount() != 3 {
		t.Fatalf("file count = %d, want 3", tr.FileCount())
	}

	deps := tr.Dependencies(paths["app"])
	if len(deps) != 1 || deps[0] != paths["util"] {
		t.Errorf("App dependencies = %v, want [%s]", deps, paths["util"])
	}
	dependents := tr.Dependents(paths["util"])
	if len(dependents) != 1 || dependents[0] != paths["app"] {
		t.Errorf("Util dependents = %v", dependents)
	}

	if path, ok := tr.Lookup("com.acme.util.Util"); !ok || path != paths["util"] {
		t.Errorf("Lookup = %q, %v", path, ok)
	}
	if path, ok := tr.LookupSimple("Util"); !ok || path != paths["util"] {
		t.Errorf("LookupSimple = %q, %v", path, ok)
	}
}

func TestImpactDirectAndTransitive(t *testing.T) {
	tr, _, paths := buildFixture(t)

	report, err := tr.Impact(paths["util"])
	if err != nil {
		t.Fatalf("Impact: %v", err)
	}
	if len(report.Direct) != 1 || report.Direct[0] != paths["app"] {
		t.Errorf("direct = %v", report.Direct)
	}
	if len(report.Transitive) != 1 || report.Transitive[0] != paths["main"] {
		t.Errorf("transitive = %v", report.Transitive)
	}
	if report.Total() != 2 {
		t.Errorf("total = %d", report.Total())
	}

	// leaf file: nobody depends on Main
	report, err = tr.Impact(paths["main"])
	if err != nil {
		t.Fatalf("Impact(main): %v", err)
	}
	if report.Total() != 0 {
		t.Errorf("leaf impact = %+v", report)
	}
}

func TestImpactByClassName(t *testing.T) {
	tr, _, paths := buildFixture(t)

	report, err := tr.Impact("com.acme.util.Util")
	if err != nil {
		t.Fatalf("Impact by class: %v", err)
	}
	if report.TargetPath != paths["util"] {
		t.Errorf("target = %q", report.TargetPath)
	}
}

func TestImpactUnknownTarget(t *testing.T) {
	tr, _, _ := buildFixture(t)

	_, err := tr.Impact("no/such/File.java")
	if !errors.Is(err, ErrImpactTargetNotFound) {
		t.Errorf("err = %v, want ErrImpactTargetNotFound", err)
	}
}

func TestCyclicDependenciesAreSafe(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a/A.java", `package com.acme;

public class A {
    B partner;
}
`)
	b := writeFile(t, root, "a/B.java", `package com.acme;

public class B {
    A partner;
}
`)

	tr := newTracker(t)
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}

	// the traversal must terminate and exclude the origin
	report, err := tr.Impact(a)
	if err != nil {
		t.Fatalf("Impact: %v", err)
	}
	if len(report.Direct) != 1 || report.Direct[0] != b {
		t.Errorf("direct = %v", report.Direct)
	}
	if len(report.Transitive) != 0 {
		t.Errorf("transitive = %v, cycle must not re-add the origin", report.Transitive)
	}

	cycles := tr.DetectCycles()
	if len(cycles) != 1 || len(cycles[0]) != 2 {
		t.Fatalf("cycles = %v", cycles)
	}
}

func TestBuildCanceledPublishesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "X.java", "package p; public class X {}")

	tr := newTracker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.BuildProject(ctx, root)
	if !errors.Is(err, ErrBuildCanceled) {
		t.Fatalf("err = %v, want ErrBuildCanceled", err)
	}
	if tr.FileCount() != 0 {
		t.Errorf("canceled build published %d files", tr.FileCount())
	}
}

func TestExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/Keep.java", "package p; public class Keep {}")
	writeFile(t, root, "build/Gen.java", "package p; public class Gen {}")

	tr := newTracker(t, WithExcludes([]string{"build/**"}))
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}
	if tr.FileCount() != 1 {
		t.Errorf("file count = %d, want 1 (generated tree excluded)", tr.FileCount())
	}
}

func TestClassCollisionFirstWriterWins(t *testing.T) {
	root := t.TempDir()
	first := writeFile(t, root, "a/Dup.java", "package p; public class Dup {}")
	writeFile(t, root, "b/Dup.java", "package p; public class Dup {}")

	tr := newTracker(t)
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}

	// paths merge in sorted order, a/ comes before b/
	if path, ok := tr.Lookup("p.Dup"); !ok || path != first {
		t.Errorf("Lookup(p.Dup) = %q, want %q", path, first)
	}
}

func TestWildcardImportResolvesOverIndex(t *testing.T) {
	root := t.TempDir()
	util := writeFile(t, root, "util/Helper.java", `package com.acme.util;

public class Helper {}
`)
	app := writeFile(t, root, "app/Caller.java", `package com.acme.app;

import com.acme.util.*;

public class Caller {
    Helper helper;
}
`)

	tr := newTracker(t)
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}

	deps := tr.Dependencies(app)
	if len(deps) != 1 || deps[0] != util {
		t.Errorf("wildcard dependency = %v, want [%s]", deps, util)
	}
}

func TestWildcardImportAloneCreatesEdges(t *testing.T) {
	root := t.TempDir()
	helper := writeFile(t, root, "util/Helper.java", `package com.acme.util;

public class Helper {}
`)
	format := writeFile(t, root, "util/Format.java", `package com.acme.util;

public class Format {}
`)
	app := writeFile(t, root, "app/Caller.java", `package com.acme.app;

import com.acme.util.*;

public class Caller {
}
`)

	tr := newTracker(t)
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}

	// the import alone links Caller to every file declaring under the package
	deps := tr.Dependencies(app)
	if len(deps) != 2 || deps[0] != format || deps[1] != helper {
		t.Errorf("wildcard-only dependencies = %v, want [%s %s]", deps, format, helper)
	}

	report, err := tr.Impact(helper)
	if err != nil {
		t.Fatalf("Impact: %v", err)
	}
	if len(report.Direct) != 1 || report.Direct[0] != app {
		t.Errorf("impact direct = %v, want [%s]", report.Direct, app)
	}
}

func TestUpdateAndRemoveFile(t *testing.T) {
	tr, _, paths := buildFixture(t)

	// Main stops importing App
	if err := os.WriteFile(paths["main"], []byte(`package com.acme.main;

public class Main {
    public static void main(String[] args) {}
}
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := tr.UpdateFile(paths["main"]); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if deps := tr.Dependencies(paths["main"]); len(deps) != 0 {
		t.Errorf("deps after update = %v", deps)
	}

	tr.RemoveFile(paths["app"])
	if tr.FileCount() != 2 {
		t.Errorf("file count after remove = %d", tr.FileCount())
	}
	report, err := tr.Impact(paths["util"])
	if err != nil {
		t.Fatalf("Impact after remove: %v", err)
	}
	if report.Total() != 0 {
		t.Errorf("impact after remove = %+v", report)
	}
}

func TestDegradedFileStaysTracked(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Ok.java", "package p; public class Ok {}")
	writeFile(t, root, "Broken.java", "package p; public class Broken { void x( }")

	tr := newTracker(t)
	if err := tr.BuildProject(context.Background(), root); err != nil {
		t.Fatalf("BuildProject: %v", err)
	}
	if tr.FileCount() != 2 {
		t.Errorf("file count = %d, want 2", tr.FileCount())
	}
	if tr.DegradedCount() != 1 {
		t.Errorf("degraded count = %d, want 1", tr.DegradedCount())
	}
}
