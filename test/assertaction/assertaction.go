// Package assertaction provides testing functions to validate the behavior of commands
package assertaction

import (
	"context"
	"testing"

	"github.com/alexandre-normand/standupscot"
	"github.com/stretchr/testify/assert"
)

// AnswerValidator is a function to do further validation of an action's answer. The return value is meant to be true if validation
// is successful and false otherwise (following the testify convention)
type AnswerValidator func(t *testing.T, a *standupscot.Answer) bool

// MatchesAndAnswers asserts that the action.Match is true and gets the action's answer to be further validated by AnswerValidator
func MatchesAndAnswers(t *testing.T, action standupscot.ActionDefinition, m *standupscot.IncomingMessage, validateAnswer AnswerValidator) bool {
	if !assert.Truef(t, action.Match(m), "Message [%s] expected to match but action.Match returned false", m.NormalizedText) {
		return false
	}

	return validateAnswer(t, action.Answer(context.Background(), m))
}

// NotMatch asserts that action.Match is false
func NotMatch(t *testing.T, action standupscot.ActionDefinition, m *standupscot.IncomingMessage) bool {
	return assert.Falsef(t, action.Match(m), "Message [%s] should not be a match but action.Match returned true", m.NormalizedText)
}

// FirstMatchAnswers asserts that one of actions matches and validates the answer of the first one that does, the
// way messages are routed to commands
func FirstMatchAnswers(t *testing.T, actions []standupscot.ActionDefinition, m *standupscot.IncomingMessage, validateAnswer AnswerValidator) bool {
	for _, a := range actions {
		if a.Match(m) {
			return validateAnswer(t, a.Answer(context.Background(), m))
		}
	}

	return assert.Failf(t, "No match", "Message [%s] expected to match one of %d actions but none did", m.NormalizedText, len(actions))
}
