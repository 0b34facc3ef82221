package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/toglayer/internal/ir"
)

// Predicate filters journaled transitions.
//
// This is a sealed interface: only Eq, Between and And implement it, so
// compilePredicate can switch exhaustively.
type Predicate interface {
	predicateNode()
}

// Eq matches rows whose column equals Value.
type Eq struct {
	Column string
	Value  any
}

// Between matches rows whose integer column lies in [Lo, Hi].
type Between struct {
	Column string
	Lo, Hi int64
}

// And matches rows satisfying every predicate. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (Eq) predicateNode()      {}
func (Between) predicateNode() {}
func (And) predicateNode()     {}

// TransitionQuery selects transitions of one session.
type TransitionQuery struct {
	Session string
	Filter  Predicate // nil = every transition
}

// transitionColumns are the columns a predicate may reference. Column
// names go into the SQL text, so they are whitelisted; values are always
// bound as parameters.
var transitionColumns = map[string]bool{
	"instance":   true,
	"kind":       true,
	"layer":      true,
	"timestamp":  true,
	"from_state": true,
	"to_state":   true,
	"position":   true,
}

// ByInstance matches one behavior instance.
func ByInstance(instance ir.InstanceID) Predicate {
	return Eq{Column: "instance", Value: string(instance)}
}

// ByKind matches one transition kind.
func ByKind(kind ir.TransitionKind) Predicate {
	return Eq{Column: "kind", Value: string(kind)}
}

// InWindow matches transitions with lo <= timestamp <= hi.
func InWindow(lo, hi ir.Timestamp) Predicate {
	return Between{Column: "timestamp", Lo: int64(lo), Hi: int64(hi)}
}

// compileTransitionQuery renders q as parameterized SQL. Every query is
// ordered by seq so results are deterministic.
func compileTransitionQuery(q TransitionQuery) (string, []any, error) {
	where := "session = ?"
	params := []any{q.Session}

	if q.Filter != nil {
		sql, fparams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + sql
		params = append(params, fparams...)
	}

	sql := "SELECT session, seq, instance, kind, layer, timestamp, from_state, to_state, position" +
		" FROM transitions WHERE " + where + " ORDER BY seq ASC"
	return sql, params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Eq:
		if !transitionColumns[pred.Column] {
			return "", nil, fmt.Errorf("unknown column %q", pred.Column)
		}
		if pred.Value == nil {
			return pred.Column + " IS NULL", nil, nil
		}
		return pred.Column + " = ?", []any{pred.Value}, nil

	case Between:
		if !transitionColumns[pred.Column] {
			return "", nil, fmt.Errorf("unknown column %q", pred.Column)
		}
		return pred.Column + " BETWEEN ? AND ?", []any{pred.Lo, pred.Hi}, nil

	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// QueryTransitions returns the transitions matching q ordered by seq.
// Returns an empty slice (not nil) if none match.
func (s *Store) QueryTransitions(ctx context.Context, q TransitionQuery) ([]ir.Transition, error) {
	sql, params, err := compileTransitionQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []ir.Transition{}
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}
