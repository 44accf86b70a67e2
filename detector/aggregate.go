package detector

import (
	"fmt"
	"sort"

	"apiscope/detector/models"
)

// aggregate merges per-strategy outputs into one deterministic list:
// exact duplicates collapse, then everything sorts by strategy
// registration order, source file, source line and name. Input slice
// order never leaks into the result.
func aggregate(order map[models.APIType]int, defs []models.APIDefinition) []models.APIDefinition {
	seen := make(map[string]bool, len(defs))
	out := make([]models.APIDefinition, 0, len(defs))
	for _, def := range defs {
		key := fmt.Sprintf("%s|%s|%d|%s", def.Type, def.SourceFile, def.SourceLine, def.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, def)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if order[a.Type] != order[b.Type] {
			return order[a.Type] < order[b.Type]
		}
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		if a.SourceLine != b.SourceLine {
			return a.SourceLine < b.SourceLine
		}
		return a.Name < b.Name
	})
	return out
}
