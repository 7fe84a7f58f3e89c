package report

import (
	"fmt"
	"strings"
	"time"

	"memarchive/internal/scanner"
)

// RenderAnalysis renders scanner results as a markdown analysis report.
func RenderAnalysis(analyses []*scanner.Analysis, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Memory Organization Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", now.Format(TimeLayout))

	for _, a := range analyses {
		fmt.Fprintf(&b, "## %s Memory\n\n", capitalize(a.Scope))
		if a.Status == scanner.StatusMissing {
			fmt.Fprintf(&b, "Archive directory does not exist: %s\n\n", a.Dir)
			continue
		}

		fmt.Fprintf(&b, "- **Loose Files:** %d\n", a.LooseFileCount())
		fmt.Fprintf(&b, "- **Categories:** %d\n", len(a.Categories))
		fmt.Fprintf(&b, "- **Total Files:** %d\n", a.TotalFiles)
		fmt.Fprintf(&b, "- **Organization:** %.1f%%\n\n", a.OrganizationPercentage)

		if a.LooseFileCount() > 0 {
			b.WriteString("### Recommended Categorization\n\n")
			b.WriteString("| Category | File Count |\n")
			b.WriteString("|----------|------------|\n")
			for _, name := range a.GroupNames() {
				fmt.Fprintf(&b, "| %s | %d |\n", cell(name), len(a.Grouping[name]))
			}
			b.WriteString("\n")
		}

		if len(a.Categories) > 0 {
			b.WriteString("### Existing Categories\n\n")
			b.WriteString("| Category | Files | Metadata |\n")
			b.WriteString("|----------|-------|----------|\n")
			for _, c := range a.Categories {
				meta := "no"
				if c.HasMetadata {
					meta = "yes"
				}
				fmt.Fprintf(&b, "| %s | %d | %s |\n", cell(c.Name), c.FileCount, meta)
			}
			b.WriteString("\n")
		}

		if len(a.Recommendations) > 0 {
			b.WriteString("### Recommendations\n\n")
			for _, rec := range a.Recommendations {
				fmt.Fprintf(&b, "- %s\n", rec.Message)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
