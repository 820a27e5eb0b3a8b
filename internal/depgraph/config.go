package depgraph

// Default thresholds and layer rules. Callers override them through Config;
// nothing in the analyses reads package-level state.
const (
	DefaultHighCouplingThreshold  = 5
	DefaultTotalCouplingThreshold = 10
)

// LayerRule maps a path substring to an architectural layer.
type LayerRule struct {
	Pattern string
	Layer   string
}

// Config carries the tunables for one analysis pass.
type Config struct {
	// HighCouplingThreshold flags hubs: modules whose incoming AND
	// outgoing counts each exceed it.
	HighCouplingThreshold int
	// TotalCouplingThreshold flags any module whose combined degree
	// exceeds it.
	TotalCouplingThreshold int
	// LayerRules is evaluated in order; the first matching rule wins.
	// A path matching no rule is unclassified and never checked.
	LayerRules []LayerRule
	// AllowedLayers lists the target layers each source layer may import
	// from. Same-layer imports are always permitted.
	AllowedLayers map[string][]string
}

// DefaultConfig returns the standard thresholds and the conventional
// four-layer ruleset.
func DefaultConfig() Config {
	return Config{
		HighCouplingThreshold:  DefaultHighCouplingThreshold,
		TotalCouplingThreshold: DefaultTotalCouplingThreshold,
		LayerRules: []LayerRule{
			{Pattern: "/components/", Layer: "presentation"},
			{Pattern: "/pages/", Layer: "presentation"},
			{Pattern: "/views/", Layer: "presentation"},
			{Pattern: "/ui/", Layer: "presentation"},
			{Pattern: "/services/", Layer: "application"},
			{Pattern: "/usecases/", Layer: "application"},
			{Pattern: "/application/", Layer: "application"},
			{Pattern: "/domain/", Layer: "domain"},
			{Pattern: "/models/", Layer: "domain"},
			{Pattern: "/entities/", Layer: "domain"},
			{Pattern: "/infrastructure/", Layer: "infrastructure"},
			{Pattern: "/repositories/", Layer: "infrastructure"},
			{Pattern: "/adapters/", Layer: "infrastructure"},
			{Pattern: "/db/", Layer: "infrastructure"},
		},
		AllowedLayers: map[string][]string{
			"presentation":   {"application", "domain"},
			"application":    {"domain"},
			"domain":         {},
			"infrastructure": {"domain"},
		},
	}
}
