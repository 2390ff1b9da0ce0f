package pipeline

// NodeConfig declares one node of a pipeline graph.
type NodeConfig struct {
	// Node is the stable identifier of the node; it is also the key the
	// implementation is registered under in the Catalog unless Type is set.
	Node string `yaml:"node" json:"node"`
	// Type selects a registered implementation when several nodes share one.
	Type        string         `yaml:"type"        json:"type,omitempty"`
	Connections []string       `yaml:"connections" json:"connections,omitempty"`
	Router      bool           `yaml:"router"      json:"router,omitempty"`
	Params      map[string]any `yaml:"params"      json:"params,omitempty"`
}

// Implementation returns the catalog key for this node.
func (c NodeConfig) Implementation() string {
	if c.Type != "" {
		return c.Type
	}
	return c.Node
}

// Schema declares a pipeline as a directed graph of nodes.
type Schema struct {
	Start string       `yaml:"start" json:"start"`
	Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
}

// Lookup returns the configuration of a declared node.
func (s Schema) Lookup(id string) (NodeConfig, bool) {
	for _, n := range s.Nodes {
		if n.Node == id {
			return n, true
		}
	}
	return NodeConfig{}, false
}

// Reachable returns the identifiers reachable from Start, in discovery order.
// Undeclared targets are skipped.
func (s Schema) Reachable() []string {
	index := make(map[string]NodeConfig, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := index[n.Node]; !dup {
			index[n.Node] = n
		}
	}

	var order []string
	seen := make(map[string]bool)
	queue := []string{s.Start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		cfg, ok := index[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		queue = append(queue, cfg.Connections...)
	}
	return order
}
