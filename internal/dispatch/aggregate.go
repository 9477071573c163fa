package dispatch

import "campuspush/internal/types"

// Summarize counts outcomes. Total always equals Successful + Failed.
func Summarize(outcomes []types.DispatchOutcome) types.DispatchSummary {
	s := types.DispatchSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			s.Successful++
		}
	}
	s.Failed = s.Total - s.Successful
	return s
}
