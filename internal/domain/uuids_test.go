package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalUUID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"heart_rate", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"battery_service", "0000180f-0000-1000-8000-00805f9b34fb"},
		{"180D", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"0x180f", "0000180f-0000-1000-8000-00805f9b34fb"},
		{"6E400001-B5A3-F393-E0A9-E50E24DCCA9E", UARTServiceUUID},
		{"6e400001b5a3f393e0a9e50e24dcca9e", UARTServiceUUID},
		{"not-a-uuid", "not-a-uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalUUID(tt.in))
		})
	}
}

func TestSameUUID(t *testing.T) {
	assert.True(t, SameUUID("180d", "heart_rate"))
	assert.False(t, SameUUID("180d", "180f"))
}
