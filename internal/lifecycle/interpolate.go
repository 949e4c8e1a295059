package lifecycle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// printfTokenRe matches any token that forces printf mode: a literal
// %% or one of %[psdifjo#].
var printfTokenRe = regexp.MustCompile(`%(%|[psdifjo#])`)

// variableTokenRe matches $name / $name.path / $# variable-mode tokens.
var variableTokenRe = regexp.MustCompile(`\$(#|[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*)`)

// interpolate resolves a .each() description template against one
// expanded row. Printf mode wins whenever %% appears or any
// %[psdifjo#] token appears; otherwise variable mode applies. The two
// modes never mix within one template.
func interpolate(template string, row EachRow) string {
	if printfTokenRe.MatchString(template) {
		return interpolatePrintf(template, row)
	}
	if strings.Contains(template, "$") {
		return interpolateVariable(template, row)
	}
	return template
}

func interpolatePrintf(template string, row EachRow) string {
	var b strings.Builder
	argIdx := 0
	nextArg := func() interface{} {
		if argIdx < len(row.Positional) {
			v := row.Positional[argIdx]
			argIdx++
			return v
		}
		return nil
	}

	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '%' || i+1 >= len(runes) {
			b.WriteRune(runes[i])
			continue
		}
		token := runes[i+1]
		switch token {
		case '%':
			b.WriteByte('%')
			i++
		case '#':
			b.WriteString(strconv.Itoa(row.Index))
			i++
		case 's':
			b.WriteString(fmt.Sprintf("%v", nextArg()))
			i++
		case 'd', 'f':
			b.WriteString(formatNumeric(nextArg()))
			i++
		case 'i':
			b.WriteString(strconv.FormatInt(int64(toFloat(nextArg())), 10))
			i++
		case 'j':
			b.WriteString(jsonEncode(nextArg()))
			i++
		case 'p':
			b.WriteString(jsonEncodePretty(nextArg()))
			i++
		case 'o':
			b.WriteString(typeTag(nextArg()))
			i++
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

func interpolateVariable(template string, row EachRow) string {
	return variableTokenRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if name == "#" {
			return strconv.Itoa(row.Index)
		}
		val, ok := resolvePath(row.Named, name)
		if !ok {
			return match // unresolved tokens left verbatim
		}
		return stringifyScalarOrCollapsed(val)
	})
}

func resolvePath(named map[string]interface{}, path string) (interface{}, bool) {
	if named == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur interface{} = named
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// stringifyScalarOrCollapsed renders scalars directly and JSON-encodes
// non-scalars, collapsing any nested object one level deep to the
// "[Object]" placeholder.
func stringifyScalarOrCollapsed(v interface{}) string {
	if isScalar(v) {
		return fmt.Sprintf("%v", v)
	}
	return jsonEncode(collapseOneLevel(v))
}

func collapseOneLevel(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		if !isScalar(val) {
			out[k] = "[Object]"
		} else {
			out[k] = val
		}
	}
	return out
}

func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func jsonEncodePretty(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func typeTag(v interface{}) string {
	return fmt.Sprintf("%T", v)
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func formatNumeric(v interface{}) string {
	f := toFloat(v)
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
