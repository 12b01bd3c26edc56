package analyses

// RiskLevel grades a single clause.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Clause is one contractual provision flagged by the model.
type Clause struct {
	Text        string    `json:"text"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Explanation string    `json:"explanation"`
	Suggestion  string    `json:"suggestion"`
}

// Result is the normalized analysis handed to presentation code. RiskScore is
// always within [0,100] and Clauses is never nil.
type Result struct {
	Summary   string   `json:"summary"`
	RiskScore int      `json:"risk_score"`
	Clauses   []Clause `json:"clauses"`
	// Degraded marks the fallback result substituted for an unparseable response.
	Degraded bool `json:"degraded"`
}

const (
	degradedSummary   = "The AI analyzed the file but the output format was complex. Risks were detected. This is an approximate result."
	degradedRiskScore = 60
)

// DegradedResult is the placeholder used when the model response could not be parsed.
func DegradedResult() Result {
	return Result{
		Summary:   degradedSummary,
		RiskScore: degradedRiskScore,
		Clauses:   []Clause{},
		Degraded:  true,
	}
}

// LevelCounts tallies clauses per risk level.
type LevelCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// CountByLevel tallies the result's clauses per risk level.
func (r Result) CountByLevel() LevelCounts {
	var c LevelCounts
	for _, cl := range r.Clauses {
		switch cl.RiskLevel {
		case RiskHigh:
			c.High++
		case RiskLow:
			c.Low++
		default:
			c.Medium++
		}
	}
	return c
}

// RiskBand buckets the overall score the way the dashboard colours it.
func (r Result) RiskBand() RiskLevel {
	switch {
	case r.RiskScore >= 70:
		return RiskHigh
	case r.RiskScore >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
