package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// renderJSONAsMarkdown is the "simple structural formatter" the
// specification calls for when a module artifact is JSON rather than
// Markdown: objects with a "title" or "name" field get promoted to a
// sub-heading, object fields become bold key/value lines, arrays of scalars
// become bullet lists, and arrays of objects recurse one level. Grounded on
// the original implementation's CPL-module formatter, generalized away from
// its hardcoded field names to any module shape.
func renderJSONAsMarkdown(root gjson.Result) string {
	var b strings.Builder
	renderValue(&b, root, 3)
	return b.String()
}

func renderValue(b *strings.Builder, v gjson.Result, headingLevel int) {
	switch {
	case v.IsObject():
		renderObject(b, v, headingLevel)
	case v.IsArray():
		renderArray(b, v, headingLevel)
	default:
		b.WriteString(v.String())
		b.WriteString("\n\n")
	}
}

func renderObject(b *strings.Builder, v gjson.Result, headingLevel int) {
	m := v.Map()

	if title, ok := m["title"]; ok && title.String() != "" {
		fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", headingLevel), title.String())
	} else if name, ok := m["name"]; ok && name.String() != "" {
		fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", headingLevel), name.String())
	}
	if desc, ok := m["description"]; ok && desc.Type == gjson.String {
		fmt.Fprintf(b, "%s\n\n", desc.String())
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "title" || k == "name" || k == "description" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := m[k]
		label := titleCase(k)
		switch {
		case val.IsObject():
			fmt.Fprintf(b, "**%s:**\n\n", label)
			renderValue(b, val, minInt(headingLevel+1, 6))
		case val.IsArray():
			fmt.Fprintf(b, "**%s:**\n\n", label)
			renderArray(b, val, headingLevel)
		default:
			fmt.Fprintf(b, "**%s:** %s\n\n", label, val.String())
		}
	}
}

func renderArray(b *strings.Builder, v gjson.Result, headingLevel int) {
	for _, item := range v.Array() {
		if item.IsObject() || item.IsArray() {
			renderValue(b, item, minInt(headingLevel+1, 6))
			continue
		}
		fmt.Fprintf(b, "- %s\n", item.String())
	}
	b.WriteString("\n")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
