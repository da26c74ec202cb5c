package analysis

import (
	"fmt"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/raine/resale-appraiser/internal/llm"
)

// AnalysisFailedError is returned when no attempt produced a valid result.
// It matches common.ErrAnalysisFailed and unwraps to the last attempt's error.
type AnalysisFailedError struct {
	LastTier llm.Tier
	Attempts int
	Err      error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempt(s), last tier %s: %v", e.Attempts, e.LastTier, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}

func (e *AnalysisFailedError) Is(target error) bool {
	return target == common.ErrAnalysisFailed
}
