package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/harvester/internal/core/failure"
)

var (
	// ErrInvalidSchema is wrapped by every schema validation failure.
	ErrInvalidSchema = errors.New("invalid pipeline schema")
)

// Validate checks the structural invariants of a schema: the start node is
// declared, nodes are declared once, connection targets are declared and
// routers have at least one connection. All problems are reported together.
func Validate(s Schema) error {
	var problems []string

	declared := make(map[string]int, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Node == "" {
			problems = append(problems, "node with empty identifier")
			continue
		}
		declared[n.Node]++
	}

	if s.Start == "" {
		problems = append(problems, "start node is not set")
	} else if declared[s.Start] == 0 {
		problems = append(problems, fmt.Sprintf("start node %q is not declared", s.Start))
	}

	for _, n := range s.Nodes {
		if n.Node == "" {
			continue
		}
		if declared[n.Node] > 1 {
			problems = append(problems, fmt.Sprintf("node %q is declared %d times", n.Node, declared[n.Node]))
			declared[n.Node] = 1 // report once
		}
		for _, target := range n.Connections {
			if declared[target] == 0 {
				problems = append(problems, fmt.Sprintf("node %q connects to undeclared node %q", n.Node, target))
			}
		}
		if n.Router && len(n.Connections) == 0 {
			problems = append(problems, fmt.Sprintf("router %q has no connections", n.Node))
		}
	}

	if len(problems) == 0 {
		return nil
	}

	fe := failure.New(
		failure.KindConfiguration,
		failure.CodeConfigValidation,
		"pipeline schema validation failed",
		fmt.Errorf("%w: %s", ErrInvalidSchema, strings.Join(problems, "; ")),
	)
	return fe.WithDetail("problems", problems)
}
