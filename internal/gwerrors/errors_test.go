package gwerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, 401, CodeUnauthorized.HTTPStatus())
	assert.Equal(t, 429, CodeQuotaExceeded.HTTPStatus())
	assert.Equal(t, 451, CodePolicyBlocked.HTTPStatus())
	assert.Equal(t, 503, CodeCircuitOpen.HTTPStatus())
}

func TestHTTPStatusUnknownCodeDefaultsTo500(t *testing.T) {
	assert.Equal(t, 500, Code("NotARealCode").HTTPStatus())
}

func TestNewErrorHasNoCause(t *testing.T) {
	err := New(CodeTimeout, "upstream took too long")
	assert.Equal(t, CodeTimeout, err.Code)
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "upstream took too long")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeUpstreamFailure, "dispatch failed", cause)
	assert.Same(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestAsGatewayError(t *testing.T) {
	ge := New(CodeBudgetExceeded, "over budget")
	var err error = ge
	resolved, ok := AsGatewayError(err)
	assert.True(t, ok)
	assert.Equal(t, ge, resolved)

	_, ok = AsGatewayError(errors.New("plain error"))
	assert.False(t, ok)
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeQueueFull, "queue saturated")
	assert.True(t, Is(err, CodeQueueFull))
	assert.False(t, Is(err, CodeTimeout))
	assert.False(t, Is(errors.New("not a gateway error"), CodeQueueFull))
}
