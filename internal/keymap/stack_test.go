package keymap

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toglayer/internal/ir"
)

func TestStack_DefaultLayer(t *testing.T) {
	s := NewStack(4, nil)

	assert.True(t, s.IsActive(0))
	assert.Equal(t, ir.LayerID(0), s.Highest())
	assert.Equal(t, []ir.LayerID{0}, s.Active())

	s.Deactivate(0)
	assert.True(t, s.IsActive(0))
}

func TestStack_ActivateDeactivate(t *testing.T) {
	s := NewStack(8, nil)

	s.Activate(3)
	s.Activate(3)
	s.Activate(5)
	assert.Equal(t, []ir.LayerID{0, 3, 5}, s.Active())
	assert.Equal(t, ir.LayerID(5), s.Highest())
	assert.Equal(t, uint32(0b101001), s.Mask())

	s.Deactivate(5)
	s.Deactivate(5)
	assert.False(t, s.IsActive(5))
	assert.Equal(t, ir.LayerID(3), s.Highest())

	s.Reset()
	assert.Equal(t, []ir.LayerID{0}, s.Active())
}

func TestStack_OutOfRange(t *testing.T) {
	var buf bytes.Buffer
	s := NewStack(4, slog.New(slog.NewTextHandler(&buf, nil)))

	s.Activate(4)

	assert.False(t, s.IsActive(4))
	assert.Equal(t, uint32(1), s.Mask())
	require.Contains(t, buf.String(), "layer out of range")
	assert.Contains(t, buf.String(), "op=activate")
}

func TestStack_Clamp(t *testing.T) {
	assert.Equal(t, 1, NewStack(0, nil).Layers())
	assert.Equal(t, MaxLayers, NewStack(64, nil).Layers())

	s := NewStack(MaxLayers, nil)
	s.Activate(31)
	assert.Equal(t, ir.LayerID(31), s.Highest())
}
