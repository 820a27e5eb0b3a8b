package report

import (
	"encoding/json"
	"fmt"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// FormatJSON renders the report as indented JSON. Map keys come out
// sorted, so two analyses of the same tree produce identical bytes.
func FormatJSON(r *depgraph.Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(data), nil
}
