// # internal/semantic/semantic_test.go
package semantic

import (
	"testing"

	"sonarfix/internal/parser"
)

func parse(t *testing.T, path, source string) *parser.SourceFile {
	t.Helper()
	p := parser.NewParser(parser.NewGrammarLoader())
	p.RegisterExtractor("java", parser.NewJavaExtractor())
	file, err := p.ParseFile(path, []byte(source))
	if err != nil {
		t.Fatalf("ParseFile(%s): %v", path, err)
	}
	return file
}

func TestSummarizeUnusedVariables(t *testing.T) {
	source := `package app;

public class Report {
    private int liveField;
    private String deadField;

    public int run(int used, int ignored) {
        int total = used + liveField;
        int leftover = 5;
        return total;
    }
}
`
	s := Summarize(parse(t, "Report.java", source))

	if s.Degraded {
		t.Fatal("unexpected degraded summary")
	}
	if len(s.UnusedLocals) != 1 || s.UnusedLocals[0].Name != "leftover" {
		t.Errorf("unused locals = %+v", s.UnusedLocals)
	}
	if s.UnusedLocals[0].Owner != "app.Report.run" {
		t.Errorf("owner = %q", s.UnusedLocals[0].Owner)
	}
	if len(s.UnusedParams) != 1 || s.UnusedParams[0].Name != "ignored" {
		t.Errorf("unused params = %+v", s.UnusedParams)
	}
	if len(s.UnusedFields) != 1 || s.UnusedFields[0].Name != "deadField" {
		t.Errorf("unused fields = %+v", s.UnusedFields)
	}
}

func TestSummarizeUnderscoreOptOut(t *testing.T) {
	source := `package app;

public class Quiet {
    public void run(int _skipped) {
        int _scratch = 1;
    }
}
`
	s := Summarize(parse(t, "Quiet.java", source))

	if len(s.UnusedLocals) != 0 || len(s.UnusedParams) != 0 {
		t.Errorf("underscore names reported: locals=%+v params=%+v",
			s.UnusedLocals, s.UnusedParams)
	}
}

func TestSummarizeWrittenNeverRead(t *testing.T) {
	source := `package app;

public class Writer {
    public void run() {
        int sink;
        sink = 3;
    }
}
`
	s := Summarize(parse(t, "Writer.java", source))

	if len(s.UnusedLocals) != 1 {
		t.Fatalf("unused locals = %+v", s.UnusedLocals)
	}
	if !s.UnusedLocals[0].Written {
		t.Error("write-only local not flagged as Written")
	}
}

func TestCallIndex(t *testing.T) {
	source := `package app;

public class Wire {
    public void first(Helper h) {
        h.assist();
    }
    public void second(Helper h) {
        h.assist();
        local();
    }
    void local() {}
}
`
	s := Summarize(parse(t, "Wire.java", source))

	callers := s.CalledFrom("assist")
	if len(callers) != 2 {
		t.Fatalf("CalledFrom(assist) = %v", callers)
	}
	if callers[0] != "app.Wire.first" || callers[1] != "app.Wire.second" {
		t.Errorf("callers = %v", callers)
	}
	if sites := s.Calls["local"]; len(sites) != 1 || sites[0].Receiver != "" {
		t.Errorf("Calls[local] = %+v", sites)
	}
}

func TestComplexityFigures(t *testing.T) {
	source := `package app;

public class Flow {
    public void flat() {}

    public int branchy(int n) {
        if (n > 0) {
            for (int i = 0; i < n; i++) {
                n--;
            }
        }
        return n > 5 ? 1 : 0;
    }
}
`
	s := Summarize(parse(t, "Flow.java", source))

	byName := make(map[string]int)
	for _, m := range s.Methods {
		byName[m.Method] = m.Complexity
	}
	if byName["flat"] != 1 {
		t.Errorf("flat = %d, want 1", byName["flat"])
	}
	// 1 + if + for + ternary
	if byName["branchy"] != 4 {
		t.Errorf("branchy = %d, want 4", byName["branchy"])
	}
	if s.MaxComplexity != 4 {
		t.Errorf("max = %d", s.MaxComplexity)
	}
	if s.SumComplexity != 5 {
		t.Errorf("sum = %d", s.SumComplexity)
	}

	over := s.OverComplexity(3)
	if len(over) != 1 || over[0].Method != "branchy" {
		t.Errorf("OverComplexity = %+v", over)
	}
}

func TestSummarizeDegradedModel(t *testing.T) {
	s := Summarize(parse(t, "Broken.java", "class Broken { void x( }"))

	if !s.Degraded {
		t.Fatal("degraded flag not set")
	}
	if len(s.UnusedLocals)+len(s.UnusedFields)+len(s.Methods) != 0 {
		t.Error("degraded summary carries findings")
	}
}
