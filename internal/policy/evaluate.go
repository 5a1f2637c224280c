package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aocs/gateway/internal/reqmodel"
)

// Evaluate returns the action of the first enabled policy (from a slice
// already sorted by ascending priority, i.e. most urgent first) whose
// conditions all match, per spec §4.2. If none match, DefaultDecision is
// returned. Evaluation is pure and deterministic: the same (policies, req,
// verdict) triple always yields the same Decision.
func Evaluate(policies []Policy, req *reqmodel.Request, verdict reqmodel.AggregatedVerdict) reqmodel.Decision {
	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		if matchesAll(p.Conditions, req, verdict) {
			return reqmodel.Decision{
				Action:      p.Action,
				PolicyID:    p.ID,
				PolicyName:  p.Name,
				Reason:      fmt.Sprintf("matched policy %q", p.Name),
				RedactSpans: p.RedactSpans,
			}
		}
	}
	return reqmodel.DefaultDecision()
}

// matchesAll requires every condition in the policy's conjunction to hold.
// A policy with no conditions always matches (a catch-all rule).
func matchesAll(conditions []Condition, req *reqmodel.Request, verdict reqmodel.AggregatedVerdict) bool {
	for _, c := range conditions {
		if !matchesOne(c, req, verdict) {
			return false
		}
	}
	return true
}

func matchesOne(c Condition, req *reqmodel.Request, verdict reqmodel.AggregatedVerdict) bool {
	switch c.Field {
	case FieldThreatLevel:
		return compareSeverity(verdict.OverallThreatLevel, c)
	case FieldUserGroup:
		return compareString(req.UserGroup, c)
	case FieldProvider:
		return compareString(req.Provider, c)
	case FieldModel:
		return compareString(req.Model, c)
	case FieldEventType:
		eventType, _ := req.Extra["eventType"].(string)
		return compareString(eventType, c)
	case FieldFindingType:
		for _, f := range verdict.Findings {
			if compareString(f.Type, c) {
				return true
			}
		}
		return false
	case FieldFindingSeverity:
		for _, f := range verdict.Findings {
			if compareSeverity(f.Severity, c) {
				return true
			}
		}
		return false
	case FieldFindingConfidence:
		for _, f := range verdict.Findings {
			if compareNumeric(f.Confidence, c) {
				return true
			}
		}
		return false
	}
	return false
}

func compareString(actual string, c Condition) bool {
	expected := fmt.Sprintf("%v", c.Value)
	switch c.Operator {
	case OpEquals:
		return actual == expected
	case OpContains:
		return strings.Contains(actual, expected)
	}
	return false
}

// compareSeverity supports equals/contains by name and gt/lt by ordinal
// rank, so a condition like {field: threatLevel, operator: gt, value: medium}
// matches high and critical.
func compareSeverity(actual reqmodel.Severity, c Condition) bool {
	expected, ok := c.Value.(string)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEquals:
		return string(actual) == expected
	case OpContains:
		return strings.Contains(string(actual), expected)
	case OpGreaterThan:
		return actual.Rank() > reqmodel.Severity(expected).Rank()
	case OpLessThan:
		return actual.Rank() < reqmodel.Severity(expected).Rank()
	}
	return false
}

// numericValue coerces a condition's value to float64, for numeric field
// comparisons like findingConfidence.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// compareNumeric supports gt/lt/equals against a numeric actual value, for
// fields like findingConfidence where severity's ordinal ranking doesn't
// apply.
func compareNumeric(actual float64, c Condition) bool {
	expected, ok := numericValue(c.Value)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEquals:
		return actual == expected
	case OpGreaterThan:
		return actual > expected
	case OpLessThan:
		return actual < expected
	}
	return false
}
