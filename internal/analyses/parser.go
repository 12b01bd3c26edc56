package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	minRiskScore = 0
	maxRiskScore = 100
	// riskScoreSentinel replaces a missing or non-numeric risk_score.
	riskScoreSentinel = 0
)

// ParseResponse recovers a Result from a raw model completion. The JSON object
// is taken to span from the first '{' to the last '}', so prose or code fences
// around it are discarded. Braces in trailing prose break this heuristic.
//
// Field problems degrade instead of failing: a bad summary becomes text, the
// score is clamped, and unusable clauses are dropped.
func ParseResponse(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || end < start {
		return Result{}, fmt.Errorf("%w: no JSON object found", ErrUnparseableResponse)
	}
	candidate := raw[start : end+1]

	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnparseableResponse, err)
	}
	if dec.More() {
		return Result{}, fmt.Errorf("%w: trailing data after JSON object", ErrUnparseableResponse)
	}

	return Result{
		Summary:   coerceString(top["summary"]),
		RiskScore: coerceRiskScore(top["risk_score"]),
		Clauses:   coerceClauses(top["clauses"]),
	}, nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}

func coerceRiskScore(v any) int {
	var raw string
	switch t := v.(type) {
	case json.Number:
		raw = t.String()
	case string:
		raw = strings.TrimSuffix(strings.TrimSpace(t), "%")
	default:
		return riskScoreSentinel
	}
	f, ok := parseScore(raw)
	if !ok {
		return riskScoreSentinel
	}
	return clampScore(f)
}

// parseScore accepts out-of-range numbers as ±Inf (or 0 on underflow) so
// they clamp like any other score.
func parseScore(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func clampScore(f float64) int {
	switch {
	case f <= minRiskScore:
		return minRiskScore
	case f >= maxRiskScore:
		return maxRiskScore
	default:
		return int(math.Round(f))
	}
}

func coerceClauses(v any) []Clause {
	list, ok := v.([]any)
	if !ok {
		return []Clause{}
	}
	out := make([]Clause, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		clause := Clause{
			Text:        coerceString(obj["text"]),
			RiskLevel:   normalizeRiskLevel(obj["risk_level"]),
			Explanation: coerceString(obj["explanation"]),
			Suggestion:  firstString(obj, "suggestion", "suggested_revision", "revision"),
		}
		if clause.Text == "" && clause.Explanation == "" {
			continue
		}
		out = append(out, clause)
	}
	return out
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := coerceString(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

func normalizeRiskLevel(v any) RiskLevel {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "severe":
		return RiskHigh
	case "low", "minor", "none":
		return RiskLow
	default:
		// "medium", "moderate" and anything unrecognized.
		return RiskMedium
	}
}
