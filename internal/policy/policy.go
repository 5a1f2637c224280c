// Package policy implements the rule engine from spec §4.2: a
// priority-ordered set of policies, each a conjunction of field conditions,
// whose first full match determines the terminal action for a request.
package policy

import (
	"github.com/aocs/gateway/internal/reqmodel"
)

// Operator is a condition's comparison kind.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
)

// Field is one of the fixed set of matchable request/verdict fields.
type Field string

const (
	FieldThreatLevel       Field = "threatLevel"
	FieldEventType         Field = "eventType"
	FieldUserGroup         Field = "userGroup"
	FieldProvider          Field = "provider"
	FieldModel             Field = "model"
	FieldFindingType       Field = "findingType"
	FieldFindingSeverity   Field = "findingSeverity"
	FieldFindingConfidence Field = "findingConfidence"
)

// Condition is one predicate within a policy's conjunction.
type Condition struct {
	Field    Field       `yaml:"field" json:"field"`
	Operator Operator    `yaml:"operator" json:"operator"`
	Value    interface{} `yaml:"value" json:"value"`
}

// Policy is one prioritized rule: when enabled and every condition matches,
// its action fires.
type Policy struct {
	ID         string          `yaml:"id" json:"id"`
	Name       string          `yaml:"name" json:"name"`
	Priority   int             `yaml:"priority" json:"priority"`
	Enabled    bool            `yaml:"enabled" json:"enabled"`
	Conditions []Condition     `yaml:"conditions" json:"conditions"`
	Action     reqmodel.Action `yaml:"action" json:"action"`
	RedactSpans []string       `yaml:"redactSpans,omitempty" json:"redactSpans,omitempty"`
}

// Valid reports whether p is well-formed enough to evaluate: it must carry
// an id and a recognized action. Malformed policies are skipped at load
// time (spec §4.2 failure model), never at evaluation time.
func (p Policy) Valid() bool {
	if p.ID == "" {
		return false
	}
	switch p.Action {
	case reqmodel.ActionAllow, reqmodel.ActionBlock, reqmodel.ActionAlert, reqmodel.ActionRedact, reqmodel.ActionLog:
	default:
		return false
	}
	for _, c := range p.Conditions {
		if !validField(c.Field) || !validOperator(c.Operator) {
			return false
		}
	}
	return true
}

func validField(f Field) bool {
	switch f {
	case FieldThreatLevel, FieldEventType, FieldUserGroup, FieldProvider, FieldModel, FieldFindingType, FieldFindingSeverity, FieldFindingConfidence:
		return true
	}
	return false
}

func validOperator(o Operator) bool {
	switch o {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}
