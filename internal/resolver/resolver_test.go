// # internal/resolver/resolver_test.go
package resolver

import (
	"testing"

	"sonarfix/internal/parser"
)

func testFile() *parser.SourceFile {
	return &parser.SourceFile{
		Path:    "app/Service.java",
		Package: "com.acme.app",
		Imports: []parser.Import{
			{Path: "java.util.List"},
			{Path: "com.acme.util", Wildcard: true},
			{Path: "java.util.Collections.emptyList", Static: true},
		},
		Types: map[string]*parser.TypeDecl{
			"com.acme.app.Service": {Name: "Service", Package: "com.acme.app"},
			"com.acme.app.Helper":  {Name: "Helper", Package: "com.acme.app"},
		},
	}
}

func TestResolveLayers(t *testing.T) {
	known := map[string]bool{
		"com.acme.app.Service": true,
		"com.acme.app.Helper":  true,
		"com.acme.util.Files":  true,
	}
	r := NewResolver(testFile(), known)

	cases := []struct {
		in   string
		want string
	}{
		{"String", "java.lang.String"},
		{"int", "int"},
		{"List", "java.util.List"},
		{"Helper", "com.acme.app.Helper"},
		{"Files", "com.acme.util.Files"},
		{"Mystery", "Mystery"},
		{"com.other.Thing", "com.other.Thing"},
	}
	for _, tc := range cases {
		if got := r.Resolve(tc.in); got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveCompositeShapes(t *testing.T) {
	r := NewResolver(testFile(), nil)

	cases := []struct {
		in   string
		want string
	}{
		{"String[]", "java.lang.String[]"},
		{"int[][]", "int[][]"},
		{"List<String>", "java.util.List<java.lang.String>"},
		{"Map<String, List<Integer>>", "java.util.Map<java.lang.String, java.util.List<java.lang.Integer>>"},
		{"List<? extends Number>", "java.util.List<? extends java.lang.Number>"},
		{"List<?>", "java.util.List<?>"},
		{"", UnresolvedType},
		{"List<String", UnresolvedType},
	}
	for _, tc := range cases {
		if got := r.Resolve(tc.in); got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBaseStripsSuffixes(t *testing.T) {
	r := NewResolver(testFile(), nil)

	if got := r.Base("List<String>[]"); got != "java.util.List" {
		t.Errorf("Base = %q", got)
	}
	if got := r.Base("?"); got != UnresolvedType {
		t.Errorf("Base(?) = %q", got)
	}
}

func TestExactImportBeatsCommonTable(t *testing.T) {
	file := testFile()
	file.Imports = []parser.Import{{Path: "com.google.common.collect.ImmutableList"}, {Path: "org.acme.Optional"}}
	r := NewResolver(file, nil)

	if got := r.Resolve("Optional"); got != "org.acme.Optional" {
		t.Errorf("Resolve(Optional) = %q, want the imported class", got)
	}
	if got := r.Resolve("ImmutableList"); got != "com.google.common.collect.ImmutableList" {
		t.Errorf("Resolve(ImmutableList) = %q", got)
	}
}

func TestWildcardNeedsProjectIndex(t *testing.T) {
	// without the index a wildcard import cannot place the name
	r := NewResolver(testFile(), nil)
	if got := r.Resolve("Files"); got != "Files" {
		t.Errorf("Resolve(Files) = %q, want literal fallback", got)
	}
}

func TestIsPrimitive(t *testing.T) {
	for _, name := range []string{"int", "boolean", "void", "double"} {
		if !IsPrimitive(name) {
			t.Errorf("IsPrimitive(%s) = false", name)
		}
	}
	for _, name := range []string{"Integer", "String", "var", "Custom"} {
		if IsPrimitive(name) {
			t.Errorf("IsPrimitive(%s) = true", name)
		}
	}
}
