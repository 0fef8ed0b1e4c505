package core

import (
	"strings"

	"github.com/bratushka/cypher/pkg/errdefs"
)

// renderChain renders the MATCH lines of one chain followed by its WHERE
// block. Elements already in declared are referenced by variable only.
func (q *Query) renderChain(c *chain, declared map[string]bool) ([]string, error) {
	if c.open() {
		return nil, errdefs.Integrity("render", "relationship %s has no end node", c.units[len(c.units)-1].variable)
	}

	var lines []string
	if len(c.units) == 1 {
		lines = append(lines, "MATCH ("+declare(c.units[0], declared)+")")
	}
	for hop := 0; 2*hop+2 < len(c.units); hop++ {
		start, edge, end := c.units[2*hop], c.units[2*hop+1], c.units[2*hop+2]
		path := c.paths[hop]

		var b strings.Builder
		b.WriteString("MATCH ")
		b.WriteString(path)
		b.WriteString(" = (")
		b.WriteString(declare(start, declared))
		b.WriteString(")")
		if c.dirs[hop] == Left {
			b.WriteString("<")
		}
		b.WriteString("-[")
		if edge.length != nil {
			b.WriteString(labels(edge.ident.Labels(), " "))
			b.WriteString(edge.length.String())
		} else {
			b.WriteString(declare(edge, declared))
		}
		b.WriteString("]-")
		if c.dirs[hop] == Right {
			b.WriteString(">")
		}
		b.WriteString("(")
		b.WriteString(declare(end, declared))
		b.WriteString(")")
		lines = append(lines, b.String())

		if edge.length != nil {
			lines = append(lines, "WITH *, relationships("+path+") as "+edge.variable)
			declared[edge.variable] = true
		}
	}

	if len(c.conds) > 0 {
		conds := make([]string, 0, len(c.conds))
		for _, bc := range c.conds {
			text, err := bc.cond.Resolve(q.reg, bc.variable)
			if err != nil {
				return nil, err
			}
			conds = append(conds, text)
		}
		lines = append(lines, "WHERE "+strings.Join(conds, "\n  AND "))
	}
	return lines, nil
}

// declare renders "var:Label" the first time a variable shows up and the
// bare variable afterwards.
func declare(u *unit, declared map[string]bool) string {
	if declared[u.variable] {
		return u.variable
	}
	declared[u.variable] = true
	return u.variable + labels(u.ident.Labels(), "")
}

func labels(ls []string, suffix string) string {
	if len(ls) == 0 {
		return ""
	}
	var b strings.Builder
	for _, l := range ls {
		b.WriteByte(':')
		b.WriteString(label(l))
	}
	b.WriteString(suffix)
	return b.String()
}
