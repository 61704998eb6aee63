package apitypes

// AgentManifest is the immutable descriptor produced by agent code. It is
// discovered at startup and persisted to a catalog table, but the manifest
// returned by the agent's Manifest() method is always the source of truth.
type AgentManifest struct {
	Slug                 string   `json:"slug"`
	Name                 string   `json:"name"`
	Version              string   `json:"version"`
	Description          string   `json:"description"`
	Icon                 string   `json:"icon,omitempty"`
	Category             string   `json:"category,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	Tools                []string `json:"tools,omitempty"`
	Connectors           []string `json:"connectors,omitempty"`
	Triggers             []string `json:"triggers,omitempty"`
	Capabilities         []string `json:"capabilities,omitempty"`
	MinPlatformVersion   string   `json:"min_platform_version,omitempty"`
}

// HasCapability reports whether the manifest declares the named capability
// (e.g. "streaming").
func (m AgentManifest) HasCapability(name string) bool {
	for _, c := range m.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}
