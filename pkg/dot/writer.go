package dot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// formatAttrs renders attributes as a comma-separated list with sorted keys
// so identical payloads produce identical programs.
func formatAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quoteValue(attrs[k])))
	}
	return strings.Join(parts, ", ")
}

// quoteValue returns numbers and lowercase identifiers bare and quotes
// everything else.
func quoteValue(val string) string {
	if val != "" && (isNumeric(val) || isBareIdentifier(val)) {
		return val
	}
	return quoteID(val)
}

// quoteID always quotes, escaping quotes, backslashes and newlines.
func quoteID(val string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range val {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r', '\t':
			b.WriteByte(' ')
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isBareIdentifier(val string) bool {
	for i, ch := range val {
		if ch == '_' || unicode.IsLower(ch) && ch < unicode.MaxASCII {
			continue
		}
		if i > 0 && ch >= '0' && ch <= '9' {
			continue
		}
		return false
	}
	return true
}

func isNumeric(val string) bool {
	_, err := strconv.ParseFloat(val, 64)
	return err == nil && !strings.ContainsAny(val, "eEinfINFxX_")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
