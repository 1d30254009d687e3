package report

import (
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"marketpulse/store"
)

// loadedModule is a module's rendered Markdown content plus how it was
// sourced, used when building the TOC and stats footer.
type loadedModule struct {
	Name        string
	Content     string
	FromJSON    bool
	Malformed   bool
}

// loadModules attempts to load, in ModuleOrder, a Markdown artifact first
// and a JSON artifact second for each module name; JSON is rendered to
// Markdown via renderJSONAsMarkdown. A module with neither artifact is
// simply absent from the returned map; this is never fatal.
func loadModules(st *store.Store, session string) map[string]*loadedModule {
	available := st.ListModules(session)
	out := map[string]*loadedModule{}

	for _, name := range ModuleOrder {
		path, ok := available[name]
		if !ok {
			continue
		}
		data, err := st.ReadFile(path)
		if err != nil || len(strings.TrimSpace(string(data))) == 0 {
			continue
		}

		if strings.EqualFold(filepath.Ext(path), ".md") {
			out[name] = &loadedModule{Name: name, Content: string(data)}
			continue
		}

		raw := string(data)
		if !gjson.Valid(raw) {
			out[name] = &loadedModule{Name: name, Content: codeBlock(raw), FromJSON: true, Malformed: true}
			continue
		}
		out[name] = &loadedModule{Name: name, Content: renderJSONAsMarkdown(gjson.Parse(raw)), FromJSON: true}
	}
	return out
}

func codeBlock(raw string) string {
	var b strings.Builder
	b.WriteString("```json\n")
	b.WriteString(raw)
	b.WriteString("\n```\n")
	return b.String()
}
