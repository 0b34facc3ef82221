package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/toglayer/internal/ir"
)

// ErrSessionNotFound is returned when a session token is not journaled.
var ErrSessionNotFound = errors.New("session not found")

// Input is a journaled event with its logical sequence number.
type Input struct {
	Seq   int64
	Event ir.Event
}

// ReadSession returns the session with the given token.
func (s *Store) ReadSession(ctx context.Context, token string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT token, config_hash, engine_version, journal_version, label
		FROM sessions
		WHERE token = ?
	`, token).Scan(&sess.Token, &sess.ConfigHash, &sess.EngineVersion, &sess.JournalVersion, &sess.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %s: %w", token, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// ListSessions returns every session ordered by token. UUIDv7 tokens
// sort by creation time.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, config_hash, engine_version, journal_version, label
		FROM sessions
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Token, &sess.ConfigHash, &sess.EngineVersion, &sess.JournalVersion, &sess.Label); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadInputs returns the journaled events of a session ordered by seq.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadInputs(ctx context.Context, session string) ([]Input, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload
		FROM inputs
		WHERE session = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer rows.Close()

	inputs := []Input{}
	for rows.Next() {
		var (
			seq     int64
			kind    string
			payload string
		)
		if err := rows.Scan(&seq, &kind, &payload); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		ev, err := unmarshalEvent(kind, payload)
		if err != nil {
			return nil, fmt.Errorf("input seq %d: %w", seq, err)
		}
		inputs = append(inputs, Input{Seq: seq, Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inputs: %w", err)
	}
	return inputs, nil
}

// ReadTransitions returns the journaled transitions of a session ordered
// by seq. Returns an empty slice (not nil) if none exist.
func (s *Store) ReadTransitions(ctx context.Context, session string) ([]ir.Transition, error) {
	return s.QueryTransitions(ctx, TransitionQuery{Session: session})
}

// CountTransitions returns how many transitions of kind a session holds.
func (s *Store) CountTransitions(ctx context.Context, session string, kind ir.TransitionKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transitions WHERE session = ? AND kind = ?
	`, session, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return n, nil
}

func scanTransition(rows *sql.Rows) (ir.Transition, error) {
	var (
		t        ir.Transition
		instance string
		kind     string
		layer    int64
		ts       int64
		from     string
		to       string
		position sql.NullInt64
	)
	if err := rows.Scan(&t.Session, &t.Seq, &instance, &kind, &layer, &ts, &from, &to, &position); err != nil {
		return ir.Transition{}, fmt.Errorf("scan transition: %w", err)
	}

	var err error
	if t.From, err = ir.ParseState(from); err != nil {
		return ir.Transition{}, fmt.Errorf("transition seq %d: %w", t.Seq, err)
	}
	if t.To, err = ir.ParseState(to); err != nil {
		return ir.Transition{}, fmt.Errorf("transition seq %d: %w", t.Seq, err)
	}

	t.Instance = ir.InstanceID(instance)
	t.Kind = ir.TransitionKind(kind)
	t.Layer = ir.LayerID(layer)
	t.Timestamp = ir.Timestamp(ts)
	if position.Valid {
		p := ir.Position(position.Int64)
		t.Position = &p
	}
	return t, nil
}
