package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestPolicyValidRejectsMissingID(t *testing.T) {
	p := Policy{Action: reqmodel.ActionBlock}
	assert.False(t, p.Valid())
}

func TestPolicyValidRejectsUnknownAction(t *testing.T) {
	p := Policy{ID: "p1", Action: reqmodel.Action("nonsense")}
	assert.False(t, p.Valid())
}

func TestPolicyValidRejectsUnknownConditionField(t *testing.T) {
	p := Policy{
		ID:         "p1",
		Action:     reqmodel.ActionAllow,
		Conditions: []Condition{{Field: "bogus", Operator: OpEquals, Value: "x"}},
	}
	assert.False(t, p.Valid())
}

func TestPolicyValidAcceptsWellFormedPolicy(t *testing.T) {
	p := Policy{
		ID:         "p1",
		Action:     reqmodel.ActionBlock,
		Conditions: []Condition{{Field: FieldThreatLevel, Operator: OpGreaterThan, Value: "medium"}},
	}
	assert.True(t, p.Valid())
}
