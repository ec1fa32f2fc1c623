package models

// LLMAnalysis is the optional qualitative assessment of a symbol.
// Bullish/Bearish scores are in [0,10], Confidence in [0,1].
type LLMAnalysis struct {
	BullishScore float64  `json:"bullish_score"`
	BearishScore float64  `json:"bearish_score"`
	Confidence   float64  `json:"confidence"`
	Insights     []string `json:"insights,omitempty"`
	Risks        []string `json:"risks,omitempty"`
	Model        string   `json:"model,omitempty"`
}
