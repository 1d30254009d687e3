// Package report implements the Report Compiler (Stage 3): it loads module
// artifacts previously written by external module generators via
// store.SaveModule, concatenates them in a fixed declared order into a
// single Markdown document, and computes compilation statistics. Grounded on
// the original implementation's comprehensive_report_generator_v3 module
// order and compilation shape, adapted into the teacher's struct-and-method
// layering.
package report

// ModuleOrder is the fixed, closed set of module names the compiler looks
// for, in the order they are rendered. This resolves the specification's
// open question about module ordering: the order is a compile-time constant,
// not configurable per session, so TOC position is stable across reports.
var ModuleOrder = []string{
	"objection_handling",
	"audience_avatars",
	"competitive_analysis",
	"mental_drivers",
	"sales_funnel",
	"market_insights",
	"keyword_strategy",
	"action_plan",
	"positioning_strategy",
	"pre_pitch_structure",
	"future_predictions",
	"visual_proof_system",
	"conversion_metrics",
	"pricing_strategy",
	"acquisition_channels",
	"launch_timeline",
	// Appended protocol modules, persisted as structured JSON rather than
	// prose Markdown.
	"launch_protocol_1",
	"launch_protocol_2",
	"launch_protocol_3",
	"launch_protocol_4",
	"launch_protocol_5",
}

// moduleTitles gives each module a human-readable section heading; a module
// absent from this map falls back to a title-cased rendering of its name.
var moduleTitles = map[string]string{
	"objection_handling":   "Objection-Handling System",
	"audience_avatars":     "Audience Avatars",
	"competitive_analysis": "Competitive Analysis",
	"mental_drivers":       "Mental Drivers",
	"sales_funnel":         "Sales Funnel",
	"market_insights":      "Market Insights",
	"keyword_strategy":     "Keyword Strategy",
	"action_plan":          "Action Plan",
	"positioning_strategy": "Positioning Strategy",
	"pre_pitch_structure":  "Pre-Pitch Structure",
	"future_predictions":  "Market Predictions",
	"visual_proof_system":  "Visual Proof System",
	"conversion_metrics":   "Conversion Metrics",
	"pricing_strategy":     "Pricing Strategy",
	"acquisition_channels": "Acquisition Channels",
	"launch_timeline":      "Launch Timeline",
	"launch_protocol_1":    "Magnetic Event Architecture",
	"launch_protocol_2":    "Launch Content 1 - The Paralyzing Opportunity",
	"launch_protocol_3":    "Launch Content 2 - The Impossible Transformation",
	"launch_protocol_4":    "Launch Content 3 - The Revolutionary Path",
	"launch_protocol_5":    "Launch Content 4 - The Inevitable Decision",
}

func moduleTitle(name string) string {
	if t, ok := moduleTitles[name]; ok {
		return t
	}
	return titleCase(name)
}

func titleCase(name string) string {
	out := []rune(name)
	upperNext := true
	for i, r := range out {
		if r == '_' {
			out[i] = ' '
			upperNext = true
			continue
		}
		if upperNext && r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
		upperNext = false
	}
	return string(out)
}
