// # internal/resolver/stdlib.go
package resolver

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/java.txt
var javaStdlibData string

//go:embed stdlib/java_common.txt
var javaCommonData string

// javaBuiltins maps simple names visible without an import to their
// fully qualified names. Primitives map to themselves. javaCommon
// holds well-known JDK types consulted only after the import layers.
var (
	javaBuiltins = map[string]string{}
	javaCommon   = map[string]string{}
)

func init() {
	loadStdlibData(javaBuiltins, javaStdlibData)
	loadStdlibData(javaCommon, javaCommonData)
}

func loadStdlibData(dst map[string]string, data string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.LastIndex(line, ".")
		if idx < 0 {
			dst[line] = line
			continue
		}
		dst[line[idx+1:]] = line
	}
}

// IsPrimitive reports whether the name is a Java primitive (or void).
func IsPrimitive(name string) bool {
	full, ok := javaBuiltins[name]
	return ok && full == name && name != "var"
}
