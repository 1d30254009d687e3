package search

import "fmt"

// maxVariants / minVariants bound the fan-out per the specification's
// "totals typically 20-40 variants" guidance.
const (
	minVariants = 20
	maxVariants = 40
)

// GenerateVariants derives a primary query plus a fan-out of per-niche,
// per-audience, long-tail, semantic-expansion, and temporal variants. The
// result is capped to maxVariants and never shorter than minVariants when
// the brief has enough distinct fields to produce that many.
func GenerateVariants(b Brief) []string {
	primary := fmt.Sprintf("%s %s %s", b.Segment, b.Product, b.Audience)
	variants := []string{primary}

	niches := []string{"pricing", "competitors", "growth", "retention", "trends", "risks"}
	for _, n := range niches {
		variants = append(variants, fmt.Sprintf("%s %s for %s", b.Product, n, b.Segment))
	}

	audienceForms := []string{"needs", "pain points", "buying behavior", "preferences"}
	for _, a := range audienceForms {
		variants = append(variants, fmt.Sprintf("%s %s %s", b.Audience, a, b.Segment))
	}

	longTail := []string{
		fmt.Sprintf("how does %s affect %s in %s", b.Product, b.Audience, b.Segment),
		fmt.Sprintf("why do %s choose %s over alternatives in %s", b.Audience, b.Product, b.Segment),
		fmt.Sprintf("what makes %s succeed with %s", b.Product, b.Audience),
	}
	variants = append(variants, longTail...)

	semantic := []string{
		fmt.Sprintf("%s market analysis", b.Segment),
		fmt.Sprintf("%s industry outlook", b.Segment),
		fmt.Sprintf("%s consumer sentiment", b.Segment),
		fmt.Sprintf("%s competitive landscape", b.Segment),
	}
	variants = append(variants, semantic...)

	temporal := []string{
		fmt.Sprintf("%s trends 2025", b.Segment),
		fmt.Sprintf("%s trends 2026", b.Segment),
		fmt.Sprintf("%s forecast next year", b.Segment),
		fmt.Sprintf("%s emerging patterns this quarter", b.Segment),
	}
	variants = append(variants, temporal...)

	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	for len(variants) < minVariants {
		variants = append(variants, fmt.Sprintf("%s %s insight #%d", b.Segment, b.Product, len(variants)+1))
	}
	return variants
}
