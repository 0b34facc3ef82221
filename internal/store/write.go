package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/toglayer/internal/ir"
)

// Session describes one engine run.
type Session struct {
	Token          string `json:"token"`
	ConfigHash     string `json:"config_hash"`
	EngineVersion  string `json:"engine_version"`
	JournalVersion string `json:"journal_version"`
	Label          string `json:"label,omitempty"`
}

// BeginSession registers a session. Registering the same token twice is a
// no-op.
func (s *Store) BeginSession(ctx context.Context, sess Session) error {
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	if sess.JournalVersion == "" {
		sess.JournalVersion = ir.JournalVersion
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, config_hash, engine_version, journal_version, label)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		sess.Token,
		sess.ConfigHash,
		sess.EngineVersion,
		sess.JournalVersion,
		sess.Label,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// RecordInput journals one dispatched event. Duplicate (session, seq)
// writes are ignored.
func (s *Store) RecordInput(ctx context.Context, session string, seq int64, ev ir.Event) error {
	payload, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("record input: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inputs (session, seq, kind, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`,
		session,
		seq,
		string(ev.Kind),
		int64(ev.Timestamp()),
		payload,
	)
	if err != nil {
		return fmt.Errorf("record input: %w", err)
	}
	return nil
}

// RecordTransition journals one behavior transition. Duplicate
// (session, seq) writes are ignored.
func (s *Store) RecordTransition(ctx context.Context, t ir.Transition) error {
	var position sql.NullInt64
	if t.Position != nil {
		position = sql.NullInt64{Int64: int64(*t.Position), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(session, seq, instance, kind, layer, timestamp, from_state, to_state, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`,
		t.Session,
		t.Seq,
		string(t.Instance),
		string(t.Kind),
		int64(t.Layer),
		int64(t.Timestamp),
		t.From.String(),
		t.To.String(),
		position,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}
