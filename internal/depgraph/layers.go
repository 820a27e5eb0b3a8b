package depgraph

import "strings"

// DetectLayerViolations flags import edges that break the allowed layer
// ordering. Endpoints that match no layer rule are skipped entirely; this
// is advisory pattern-matching over the built graph, nothing is blocked.
func DetectLayerViolations(modules map[string]*Module, cfg Config) []LayerViolation {
	var violations []LayerViolation
	for _, path := range sortedModulePaths(modules) {
		sourceLayer := classifyLayer(path, cfg.LayerRules)
		if sourceLayer == "" {
			continue
		}
		for _, imp := range modules[path].Imports {
			targetLayer := classifyLayer(imp, cfg.LayerRules)
			if targetLayer == "" || targetLayer == sourceLayer {
				continue
			}
			if !layerAllowed(cfg.AllowedLayers[sourceLayer], targetLayer) {
				violations = append(violations, LayerViolation{
					Source: path,
					Target: imp,
					Label:  sourceLayer + " → " + targetLayer,
				})
			}
		}
	}
	return violations
}

// classifyLayer returns the layer of the first matching rule, or "" when
// no rule matches.
func classifyLayer(path string, rules []LayerRule) string {
	for _, rule := range rules {
		if strings.Contains(path, rule.Pattern) {
			return rule.Layer
		}
	}
	return ""
}

func layerAllowed(allowed []string, target string) bool {
	for _, layer := range allowed {
		if layer == target {
			return true
		}
	}
	return false
}
