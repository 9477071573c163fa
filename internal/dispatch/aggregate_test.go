package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campuspush/internal/types"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []types.DispatchOutcome
		want     types.DispatchSummary
	}{
		{"empty", nil, types.DispatchSummary{}},
		{"all ok", []types.DispatchOutcome{{Success: true}, {Success: true}}, types.DispatchSummary{Total: 2, Successful: 2}},
		{"mixed", []types.DispatchOutcome{{Success: true}, {}, {Success: true}, {}}, types.DispatchSummary{Total: 4, Successful: 2, Failed: 2}},
		{"all failed", []types.DispatchOutcome{{}, {}, {}}, types.DispatchSummary{Total: 3, Failed: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.outcomes)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Successful+got.Failed)
		})
	}
}
