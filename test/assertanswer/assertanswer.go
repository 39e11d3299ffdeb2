// Package assertanswer provides testing functions to validate a command's answer
package assertanswer

import (
	"testing"

	"github.com/alexandre-normand/standupscot"
	"github.com/stretchr/testify/assert"
)

// HasText asserts that the answer's text is the expected text
func HasText(t *testing.T, answer *standupscot.Answer, text string) bool {
	if assert.NotNil(t, answer) {
		return assert.Equalf(t, text, answer.Text, "Answer text expected to be [%s] but was [%s]", text, answer.Text)
	}
	return false
}

// HasTextContaining asserts that the answer's text contains the expected subString
func HasTextContaining(t *testing.T, answer *standupscot.Answer, subString string) bool {
	if assert.NotNil(t, answer) {
		return assert.Containsf(t, answer.Text, subString, "Answer expected to have text containing [%s] but its text [%s] didn't", subString, answer.Text)
	}
	return false
}

// IsEphemeral asserts that the answer is only visible to the user who sent the command
func IsEphemeral(t *testing.T, answer *standupscot.Answer) bool {
	return hasResponseType(t, answer, "ephemeral")
}

// IsInChannel asserts that the answer is visible to everyone in the channel
func IsInChannel(t *testing.T, answer *standupscot.Answer) bool {
	return hasResponseType(t, answer, "in_channel")
}

func hasResponseType(t *testing.T, answer *standupscot.Answer, responseType string) bool {
	if assert.NotNil(t, answer) {
		sendOpts := standupscot.ApplyAnswerOpts(answer.Options...)
		return assert.Equalf(t, responseType, sendOpts[standupscot.ResponseTypeOpt], "Answer response type expected to be [%s] but was [%s]", responseType, sendOpts[standupscot.ResponseTypeOpt])
	}
	return false
}
