package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainConfig separates config hashes from any other hashed content.
const DomainConfig = "toglayer/config/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash computes a stable identity for a compiled keymap config.
// Journaled sessions carry it so a replay can detect a changed config.
func ConfigHash(cfg *KeymapConfig) (string, error) {
	behaviors := make([]any, len(cfg.Behaviors))
	for i, b := range cfg.Behaviors {
		behaviors[i] = map[string]any{
			"name":                   string(b.Name),
			"require_prior_idle_ms":  int64(b.RequirePriorIdleMs),
			"excluded_positions":     positionsAny(b.ExcludedPositions),
			"deactivation_positions": positionsAny(b.DeactivationPositions),
			"hold_trigger_positions": positionsAny(b.HoldTriggerPositions),
			"time_to_live_ms":        int64(b.TimeToLiveMs),
			"defer_activation":       b.DeferActivation,
			"activation_delay_ms":    int64(b.ActivationDelayMs),
		}
	}
	bindings := make([]any, len(cfg.Bindings))
	for i, b := range cfg.Bindings {
		bindings[i] = map[string]any{
			"name":     b.Name,
			"behavior": string(b.Behavior),
			"layer":    int64(b.Layer),
		}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"layers":    int64(cfg.Layers),
		"behaviors": behaviors,
		"bindings":  bindings,
	})
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

func positionsAny(s PositionSet) []any {
	ps := s.Positions()
	out := make([]any, 0, len(ps)+1)
	for _, p := range ps {
		out = append(out, int64(p))
	}
	if s.Overflowed() {
		// Keep the declared size in the identity so two overflowed lists
		// with the same prefix still hash differently.
		out = append(out, map[string]any{"declared": int64(s.Declared())})
	}
	return out
}
