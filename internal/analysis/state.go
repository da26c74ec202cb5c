package analysis

import "github.com/raine/resale-appraiser/internal/llm"

// Phase is a step of the analysis pipeline.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseExtractingText     Phase = "extracting_text"
	PhaseBuildingQuery      Phase = "building_query"
	PhaseFetchingMarketData Phase = "fetching_market_data"
	PhaseAnalyzing          Phase = "analyzing"
	PhaseParsingResponse    Phase = "parsing_response"
	PhaseRetrying           Phase = "retrying"
	PhaseSucceeded          Phase = "succeeded"
	PhaseFailed             Phase = "failed"
)

// State is reported on every transition. Tier and Attempt are set for the
// analyzing, parsing and retrying phases.
type State struct {
	RequestID string
	Phase     Phase
	Tier      llm.Tier
	Attempt   int
}

// Observer receives state transitions. It is called synchronously from the
// analysis goroutine and must not block.
type Observer func(State)
