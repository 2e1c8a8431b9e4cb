package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/drylogs/internal/model"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in   string
		want model.Phase
	}{
		{"install", model.PhaseInstall},
		{"checkService", model.PhaseCheckService},
		{"check-service", model.PhaseCheckService},
		{"CHECK_SERVICE", model.PhaseCheckService},
		{"Pull", model.PhasePull},
		{"drying", model.Phase("drying")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePhase(tt.in))
		})
	}
}
