// Package query implements a small SELECT language over plan nodes:
//
//	SELECT nodes WHERE ring >= 3 AND domain = 'tech' AND label CONTAINS 'api'
package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"planboard/internal/engine/dependency"
	"planboard/internal/engine/graph"
)

var (
	cqlSelectRE       = regexp.MustCompile(`(?i)^\s*SELECT\s+nodes(?:\s+WHERE\s+(.+))?\s*$`)
	cqlAndSplitRE     = regexp.MustCompile(`(?i)\s+AND\s+`)
	cqlNumericCondRE  = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(>=|<=|!=|=|>|<)\s*(-?[0-9]+)\s*$`)
	cqlContainsCondRE = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s+CONTAINS\s+['"]([^'"]+)['"]\s*$`)
	cqlStringCondRE   = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(=|!=)\s*['"]([^'"]+)['"]\s*$`)
)

var (
	numericFields = map[string]bool{"ring": true, "dependencies": true, "dependents": true}
	stringFields  = map[string]bool{"id": true, "label": true, "type": true, "domain": true, "tag": true}
)

type CQLQuery struct {
	Target     string
	Conditions []CQLCondition
}

type CQLCondition struct {
	Field  string
	Op     string
	IntVal int
	StrVal string
	IsInt  bool
	IsStr  bool
}

// Row is one selected node with its hard dependency counts.
type Row struct {
	Node         graph.Node
	Dependencies int
	Dependents   int
}

func ParseCQL(raw string) (CQLQuery, error) {
	matches := cqlSelectRE.FindStringSubmatch(strings.TrimSpace(raw))
	if len(matches) == 0 {
		return CQLQuery{}, fmt.Errorf("invalid CQL query: expected SELECT nodes [WHERE ...]")
	}

	query := CQLQuery{Target: "nodes"}
	where := strings.TrimSpace(matches[1])
	if where == "" {
		return query, nil
	}

	parts := cqlAndSplitRE.Split(where, -1)
	query.Conditions = make([]CQLCondition, 0, len(parts))
	for _, part := range parts {
		condition, err := parseCQLCondition(part)
		if err != nil {
			return CQLQuery{}, err
		}
		query.Conditions = append(query.Conditions, condition)
	}
	return query, nil
}

func parseCQLCondition(raw string) (CQLCondition, error) {
	if match := cqlNumericCondRE.FindStringSubmatch(raw); len(match) == 4 {
		field := strings.ToLower(strings.TrimSpace(match[1]))
		if !numericFields[field] {
			return CQLCondition{}, fmt.Errorf("field %q is not numeric", field)
		}
		value, err := parseInt(match[3])
		if err != nil {
			return CQLCondition{}, fmt.Errorf("invalid numeric value %q: %w", match[3], err)
		}
		return CQLCondition{
			Field:  field,
			Op:     strings.TrimSpace(match[2]),
			IntVal: value,
			IsInt:  true,
		}, nil
	}

	if match := cqlContainsCondRE.FindStringSubmatch(raw); len(match) == 3 {
		field := strings.ToLower(strings.TrimSpace(match[1]))
		if !stringFields[field] {
			return CQLCondition{}, fmt.Errorf("unknown text field %q", field)
		}
		return CQLCondition{
			Field:  field,
			Op:     "contains",
			StrVal: strings.TrimSpace(match[2]),
			IsStr:  true,
		}, nil
	}

	if match := cqlStringCondRE.FindStringSubmatch(raw); len(match) == 4 {
		field := strings.ToLower(strings.TrimSpace(match[1]))
		if !stringFields[field] {
			return CQLCondition{}, fmt.Errorf("unknown text field %q", field)
		}
		return CQLCondition{
			Field:  field,
			Op:     strings.TrimSpace(match[2]),
			StrVal: strings.TrimSpace(match[3]),
			IsStr:  true,
		}, nil
	}

	return CQLCondition{}, fmt.Errorf("invalid CQL condition %q", strings.TrimSpace(raw))
}

func parseInt(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(raw))
}

// Execute returns the nodes of snap matching every condition of q, sorted by
// ring then id. limit <= 0 means no limit.
func Execute(q CQLQuery, snap graph.Snapshot, analyzer *dependency.Analyzer, limit int) []Row {
	ix := graph.NewIndex(snap.Nodes, snap.Edges)
	var rows []Row
	for _, n := range ix.Nodes() {
		row := Row{
			Node:         n,
			Dependencies: len(analyzer.Dependencies(n.ID, snap.Edges)),
			Dependents:   len(analyzer.Dependents(n.ID, snap.Edges)),
		}
		if matchesAll(row, q.Conditions) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Node.Ring != rows[j].Node.Ring {
			return rows[i].Node.Ring < rows[j].Node.Ring
		}
		return rows[i].Node.ID < rows[j].Node.ID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func matchesAll(row Row, conditions []CQLCondition) bool {
	for _, c := range conditions {
		if !matches(row, c) {
			return false
		}
	}
	return true
}

func matches(row Row, c CQLCondition) bool {
	if c.IsInt {
		var v int
		switch c.Field {
		case "ring":
			v = row.Node.Ring
		case "dependencies":
			v = row.Dependencies
		case "dependents":
			v = row.Dependents
		}
		return compareInt(v, c.Op, c.IntVal)
	}

	if c.Field == "tag" {
		if c.Op == "!=" {
			return !row.Node.HasTag(c.StrVal)
		}
		for _, tag := range row.Node.Tags {
			if matchString(tag, c.Op, c.StrVal) {
				return true
			}
		}
		return false
	}

	var v string
	switch c.Field {
	case "id":
		v = row.Node.ID
	case "label":
		v = row.Node.Label
	case "type":
		v = string(row.Node.Type)
	case "domain":
		v = string(row.Node.Domain)
	}
	return matchString(v, c.Op, c.StrVal)
}

func compareInt(v int, op string, want int) bool {
	switch op {
	case "=":
		return v == want
	case "!=":
		return v != want
	case ">":
		return v > want
	case ">=":
		return v >= want
	case "<":
		return v < want
	case "<=":
		return v <= want
	}
	return false
}

func matchString(v, op, want string) bool {
	switch op {
	case "contains":
		return strings.Contains(strings.ToLower(v), strings.ToLower(want))
	case "=":
		return strings.EqualFold(v, want)
	case "!=":
		return !strings.EqualFold(v, want)
	}
	return false
}
