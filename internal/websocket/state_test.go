package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to ConnectionState
		want     bool
	}{
		{StateNew, StateUpgraded, true},
		{StateNew, StateClosing, true},
		{StateNew, StateStreaming, false},
		{StateUpgraded, StateStreaming, true},
		{StateUpgraded, StateClosing, true},
		{StateUpgraded, StateNew, false},
		{StateStreaming, StateStreaming, true},
		{StateStreaming, StateClosing, true},
		{StateStreaming, StateUpgraded, false},
		{StateClosing, StateClosed, true},
		{StateClosing, StateStreaming, false},
		{StateClosed, StateClosing, false},
		{StateClosed, StateClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, validTransition(tt.from, tt.to))
		})
	}
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "NEW", StateNew.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "UNKNOWN", ConnectionState(42).String())
}
