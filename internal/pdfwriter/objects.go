// Package pdfwriter builds PDF files whose pages are full-page images.
package pdfwriter

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Ref is an indirect object number. Generation is always 0.
type Ref int

// Name is a PDF name object, written with a leading slash.
type Name string

// Dict is a PDF dictionary. Keys are written without the leading slash and
// emitted in sorted order so output is deterministic.
type Dict map[string]any

// Array is a PDF array.
type Array []any

type object struct {
	ref    Ref
	dict   Dict
	stream []byte
	// raw streams already carry their own filter and are written untouched.
	raw bool
}

func (o *object) isStream() bool {
	return o.stream != nil
}

func formatValue(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		buf.WriteString(formatNumber(val))
	case Name:
		buf.WriteByte('/')
		buf.WriteString(string(val))
	case Ref:
		fmt.Fprintf(buf, "%d 0 R", int(val))
	case string:
		buf.WriteByte('(')
		buf.WriteString(escapeString(val))
		buf.WriteByte(')')
	case Array:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(' ')
			}
			formatValue(buf, item)
		}
		buf.WriteByte(']')
	case Dict:
		formatDict(buf, val)
	default:
		panic(fmt.Sprintf("pdfwriter: unsupported value type %T", v))
	}
}

func formatDict(buf *bytes.Buffer, d Dict) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteByte('/')
		buf.WriteString(k)
		buf.WriteByte(' ')
		formatValue(buf, d[k])
		buf.WriteByte(' ')
	}
	buf.WriteString(">>")
}

// formatNumber writes reals with at most four decimals and no exponent.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" || s == "-0" {
		return "0"
	}
	return s
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`, "\n", `\n`)

func escapeString(s string) string {
	return stringEscaper.Replace(s)
}
