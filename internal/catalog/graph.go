package catalog

import (
	"fmt"
	"strings"
)

// CyclicDependencyError is returned by Order when the references between
// tables form a cycle. Path lists the tables along the cycle, starting and
// ending with the same table.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("catalog: cyclic table dependency: %s", strings.Join(e.Path, " -> "))
}

// Order returns the table names in an order where every parent precedes all
// of its children. Ties are broken by declaration order, so a catalog that is
// already declared parent-first is returned unchanged. Self references are
// ignored for ordering purposes.
func (c *Catalog) Order() ([]string, error) {
	// Depth-first search with permanent/temporary marks; a table is emitted
	// once all of its parents have been emitted.
	permanent := make(map[string]bool, len(c.tables))
	temporary := make(map[string]bool)
	var stack []string
	out := make([]string, 0, len(c.tables))

	var visit func(name string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return &CyclicDependencyError{Path: cyclePath(stack, name)}
		}
		temporary[name] = true
		stack = append(stack, name)

		t := c.tables[c.byName[name]]
		for _, parent := range t.Parents() {
			if parent == name {
				continue
			}
			if err := visit(parent); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, name)
		permanent[name] = true
		out = append(out, name)
		return nil
	}

	for _, t := range c.tables {
		if err := visit(t.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cyclePath extracts the cycle closing on name from the DFS stack. The stack
// runs child -> parent, so it is reversed to read parent -> child.
func cyclePath(stack []string, name string) []string {
	start := 0
	for i, s := range stack {
		if s == name {
			start = i
			break
		}
	}
	cyc := append([]string{}, stack[start:]...)
	cyc = append(cyc, name)
	for i, j := 0, len(cyc)-1; i < j; i, j = i+1, j-1 {
		cyc[i], cyc[j] = cyc[j], cyc[i]
	}
	return cyc
}
