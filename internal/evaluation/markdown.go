package evaluation

import (
	"fmt"
	"strings"
)

// RenderMarkdown formats a result as the prompt evaluation report: the best
// approach per segment, per-segment performance tables and cross-segment
// similarity tables.
func RenderMarkdown(r *Result) string {
	var b strings.Builder
	b.WriteString("# Prompt Evaluation Report\n")

	b.WriteString("## Best Prompting Approaches by Segment\n")
	for _, segment := range r.Segments {
		fmt.Fprintf(&b, "### %s\n", segment)
		for _, entry := range r.Plan {
			approach := r.Best[segment][entry.Component]
			if approach == "" {
				fmt.Fprintf(&b, "- %s: No successful approach\n", entry.Component)
				continue
			}
			m := r.Metrics.Get(segment, entry.Component, approach)
			fmt.Fprintf(&b, "- %s: **%s**\n", entry.Component, approach)
			fmt.Fprintf(&b, "  - Success Rate: %s\n", percent(m.SuccessRate))
			fmt.Fprintf(&b, "  - Avg Response Time: %.2fs\n", m.AvgResponseTime)
			fmt.Fprintf(&b, "  - Avg Cost: $%.4f\n", m.AvgCost)
			fmt.Fprintf(&b, "  - Within-Segment Similarity: %.4f\n", m.WithinSegmentSimilarity)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Segment Performance Summary\n")
	for _, segment := range r.Segments {
		fmt.Fprintf(&b, "### %s\n", segment)
		for _, entry := range r.Plan {
			fmt.Fprintf(&b, "#### %s\n", entry.Component)
			b.WriteString("| Approach | Success Rate | Avg Response Time | Avg Cost | Within-Segment Similarity |\n")
			b.WriteString("|----------|-------------|-------------------|----------|-------------------------|\n")
			for _, approach := range entry.Approaches {
				m := r.Metrics.Get(segment, entry.Component, approach)
				if m == nil {
					continue
				}
				fmt.Fprintf(&b, "| %s | %s | %.2fs | $%.4f | %.4f |\n",
					approach, percent(m.SuccessRate), m.AvgResponseTime, m.AvgCost, m.WithinSegmentSimilarity)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Cross-Segment Similarity\n")
	for _, entry := range r.Plan {
		fmt.Fprintf(&b, "### %s\n", entry.Component)
		for _, approach := range entry.Approaches {
			fmt.Fprintf(&b, "#### %s\n", approach)
			pairs := r.Cross[entry.Component][approach]
			if len(pairs) == 0 {
				b.WriteString("No cross-segment data available\n\n")
				continue
			}
			b.WriteString("| Segment Pair | Similarity |\n")
			b.WriteString("|-------------|------------|\n")
			for _, p := range pairs {
				fmt.Fprintf(&b, "| %s - %s | %.4f |\n", p.A, p.B, p.Similarity)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
