// # internal/fix/handlers_test.go
package fix

import (
	"strings"
	"testing"

	"sonarfix/internal/parser"
	"sonarfix/internal/semantic"
)

func makeRequest(t *testing.T, source string, finding Finding) *Request {
	t.Helper()
	p := parser.NewParser(parser.NewGrammarLoader())
	p.RegisterExtractor("java", parser.NewJavaExtractor())
	model, err := p.ParseFile("Test.java", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return &Request{
		Finding: finding,
		Text:    source,
		Model:   model,
		Summary: semantic.Summarize(model),
	}
}

func runHandler(t *testing.T, h Handler, req *Request) string {
	t.Helper()
	out, err := h(req)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return out
}

func TestFixBooleanLiteral(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"if (flag == true) {", "if (flag) {"},
		{"if (true == flag) {", "if (flag) {"},
		{"if (flag != false) {", "if (flag) {"},
		{"if (flag == false) {", "if (!flag) {"},
		{"if (flag != true) {", "if (!flag) {"},
		{"if (ready() == true) {", "if (ready()) {"},
	}
	for _, tc := range cases {
		source := "class C {\n    void run(boolean flag) {\n        " +
			tc.line + "\n        }\n    }\n}\n"
		req := makeRequest(t, source, Finding{Rule: RuleBooleanLiteral, Line: 3})
		out := runHandler(t, fixBooleanLiteral, req)
		if !strings.Contains(out, tc.want) {
			t.Errorf("line %q: got %q in output, want %q", tc.line, out, tc.want)
		}
	}
}

func TestFixBooleanLiteralWrongLineNoChange(t *testing.T) {
	source := "class C {\n    boolean f(boolean b) { return b == true; }\n}\n"
	req := makeRequest(t, source, Finding{Rule: RuleBooleanLiteral, Line: 1})
	if out := runHandler(t, fixBooleanLiteral, req); out != source {
		t.Error("handler edited a line the finding does not point at")
	}
}

func TestFixCollectionSize(t *testing.T) {
	source := `class C {
    void run(java.util.List<String> items) {
        if (items.size() == 0) {}
        if (items.size() > 0) {}
        if (0 == items.size()) {}
        if (items.size() != 0) {}
        // items.size() == 0 stays in comments
    }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleCollectionSize, Line: 3})
	out := runHandler(t, fixCollectionSize, req)

	for _, want := range []string{
		"if (items.isEmpty()) {}",
		"if (!items.isEmpty()) {}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "size() == 0) {}") {
		t.Errorf("size comparison left behind:\n%s", out)
	}
	if !strings.Contains(out, "// items.size() == 0 stays in comments") {
		t.Error("comment line was rewritten")
	}
}

func TestFixSystemOut(t *testing.T) {
	source := `package app;

public class Greeter {
    public void greet(String name) {
        System.out.println("hello " + name);
    }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleSystemOut, Line: 5})
	out := runHandler(t, fixSystemOut, req)

	if !strings.Contains(out, `LOGGER.info("hello " + name);`) {
		t.Errorf("println not rewritten:\n%s", out)
	}
	if !strings.Contains(out, "import org.slf4j.Logger;") ||
		!strings.Contains(out, "import org.slf4j.LoggerFactory;") {
		t.Errorf("imports missing:\n%s", out)
	}
	if !strings.Contains(out, "private static final Logger LOGGER = LoggerFactory.getLogger(Greeter.class);") {
		t.Errorf("logger field missing:\n%s", out)
	}

	// the import block lands after the package declaration
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "package app;") {
		t.Errorf("package line displaced: %q", lines[0])
	}

	// second pass finds nothing left to do
	req2 := makeRequest(t, out, Finding{Rule: RuleSystemOut, Line: 5})
	if again := runHandler(t, fixSystemOut, req2); again != out {
		t.Error("handler is not idempotent")
	}
}

func TestFixEmptyCatch(t *testing.T) {
	source := `class C {
    void run() {
        try {
            work();
        } catch (Exception e) {}
    }
    void work() {}
}
`
	req := makeRequest(t, source, Finding{Rule: RuleEmptyCatch, Line: 5})
	out := runHandler(t, fixEmptyCatch, req)

	if !strings.Contains(out, "// TODO: handle this exception") {
		t.Errorf("catch body not annotated:\n%s", out)
	}
	if strings.Contains(out, "catch (Exception e) {}") {
		t.Errorf("empty catch left behind:\n%s", out)
	}

	req2 := makeRequest(t, out, Finding{Rule: RuleEmptyCatch, Line: 5})
	if again := runHandler(t, fixEmptyCatch, req2); again != out {
		t.Error("handler is not idempotent")
	}
}

func TestFixCommentedCode(t *testing.T) {
	source := `class C {
    // int old = compute();
    // plain prose comment
    // TODO: keep this marker; even with punctuation
    void run() {}
    /*
     * int blockComment = 1;
     */
}
`
	req := makeRequest(t, source, Finding{Rule: RuleCommentedCode, Line: 2})
	out := runHandler(t, fixCommentedCode, req)

	if strings.Contains(out, "int old = compute();") {
		t.Errorf("disabled code kept:\n%s", out)
	}
	if !strings.Contains(out, "plain prose comment") {
		t.Error("prose comment removed")
	}
	if !strings.Contains(out, "TODO: keep this marker") {
		t.Error("TODO marker removed")
	}
	if !strings.Contains(out, "int blockComment = 1;") {
		t.Error("block comment content removed")
	}
}

func TestFixUtilityConstructor(t *testing.T) {
	source := `package app;

public final class MathUtil {
    public static int twice(int n) {
        return n * 2;
    }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleUtilityConstructor, Line: 3})
	out := runHandler(t, fixUtilityConstructor, req)

	if !strings.Contains(out, "private MathUtil() {") {
		t.Errorf("constructor missing:\n%s", out)
	}
	if !strings.Contains(out, `throw new UnsupportedOperationException("Utility class");`) {
		t.Errorf("constructor body missing:\n%s", out)
	}

	// already guarded: second pass must see the constructor and stop
	req2 := makeRequest(t, out, Finding{Rule: RuleUtilityConstructor, Line: 3})
	if again := runHandler(t, fixUtilityConstructor, req2); again != out {
		t.Error("handler is not idempotent")
	}
}

func TestFixUtilityConstructorSkipsInstanceClasses(t *testing.T) {
	source := `package app;

public class Service {
    public int value() { return 1; }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleUtilityConstructor, Line: 3})
	if out := runHandler(t, fixUtilityConstructor, req); out != source {
		t.Error("instance class was rewritten")
	}
}

func TestFixUnusedLocal(t *testing.T) {
	source := `package app;

public class Calc {
    public int run() {
        int unused = 42;
        int kept = 1;
        return kept;
    }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleUnusedLocal, Line: 5})
	out := runHandler(t, fixUnusedLocal, req)

	if strings.Contains(out, "int unused = 42;") {
		t.Errorf("declaration not removed:\n%s", out)
	}
	if !strings.Contains(out, "int kept = 1;") {
		t.Error("wrong declaration removed")
	}
}

func TestFixUnusedLocalRemovesCallInitializer(t *testing.T) {
	source := `package app;

public class Calc {
    public int run() {
        int x = compute();
        return 1;
    }
    int compute() { return 1; }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleRemoveUnusedLocal, Line: 5})
	out := runHandler(t, fixUnusedLocal, req)

	if strings.Contains(out, "int x = compute();") {
		t.Errorf("declaration with a call initializer not removed:\n%s", out)
	}
	if !strings.Contains(out, "return 1;") {
		t.Error("surrounding statements damaged")
	}
}

func TestFixUnusedLocalKeepsSharedLine(t *testing.T) {
	source := `package app;

public class Calc {
    public void run() {
        int result = compute(); touch();
    }
    int compute() { return 1; }
    void touch() {}
}
`
	req := makeRequest(t, source, Finding{Rule: RuleUnusedLocal, Line: 5})
	if out := runHandler(t, fixUnusedLocal, req); out != source {
		t.Error("line carrying another statement was removed")
	}
}

func TestFlagUnusedField(t *testing.T) {
	source := `package app;

public class Box {
    private int dead;
}
`
	req := makeRequest(t, source, Finding{Rule: RuleUnusedField, Line: 4})
	out := runHandler(t, flagUnusedField, req)

	if !strings.Contains(out, "// TODO: remove this unused field") {
		t.Errorf("marker missing:\n%s", out)
	}

	req2 := makeRequest(t, out, Finding{Rule: RuleUnusedField, Line: 5})
	if again := runHandler(t, flagUnusedField, req2); again != out {
		t.Error("marker duplicated on second pass")
	}
}

func TestFlagComplexMethod(t *testing.T) {
	source := `package app;

public class Flow {
    public int busy(int n) {
        if (n > 0) { n--; }
        if (n > 1) { n--; }
        return n;
    }
}
`
	req := makeRequest(t, source, Finding{Rule: RuleComplexity, Line: 5})
	out := runHandler(t, flagComplexMethod, req)

	if !strings.Contains(out, "// TODO: refactor to reduce cognitive complexity") {
		t.Errorf("marker missing:\n%s", out)
	}

	req2 := makeRequest(t, out, Finding{Rule: RuleComplexity, Line: 6})
	if again := runHandler(t, flagComplexMethod, req2); again != out {
		t.Error("marker duplicated on second pass")
	}
}
