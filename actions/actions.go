/*
Package actions provides a fluent API for creating standupscot commands and scheduled actions.

A quick command could look like:

	c := actions.NewCommand().
		WithMatcher(func(m *standupscot.IncomingMessage) bool {
			return strings.HasPrefix(m.NormalizedText, "ping")
		}).
		WithUsage("ping").
		WithDescription("Check that I'm alive").
		WithAnswerer(func(ctx context.Context, m *standupscot.IncomingMessage) *standupscot.Answer {
			return &standupscot.Answer{Text: "pong"}
		}).
		Build()

And a scheduled action:

	sa := actions.NewScheduledAction().
		WithName("digest").
		WithSchedule(schedule.Definition{Interval: 1, Unit: schedule.Days, AtTime: "14:30"}).
		WeekdaysOnly().
		WithDescription("Post the standup digest").
		WithAction(func(ctx context.Context, today string) error {
			return service.PostDigest(ctx, today)
		}).
		Build()
*/
package actions

import (
	"context"
	"fmt"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/schedule"
)

// ActionBuilder holds the action to build
type ActionBuilder struct {
	action standupscot.ActionDefinition
}

// ScheduledActionBuilder holds the scheduled action to build
type ScheduledActionBuilder struct {
	scheduledAction standupscot.ScheduledActionDefinition
}

var (
	// Default to always match. This is acceptable since we can accomplish the same
	// behavior most of the time by returning nil in the Answerer instead
	defaultMatcher = func(m *standupscot.IncomingMessage) bool {
		return true
	}

	// Default to always return nil. This is not a default you want to use in most cases
	defaultAnswerer = func(ctx context.Context, m *standupscot.IncomingMessage) *standupscot.Answer {
		return nil
	}
)

// NewCommand returns a new ActionBuilder to build a new command. When done with the setup, the
// caller is expected to call Build() to get the action
func NewCommand() (ab *ActionBuilder) {
	ab = new(ActionBuilder)
	ab.action = standupscot.ActionDefinition{Hidden: false}

	ab.action.Match = defaultMatcher
	ab.action.Answer = defaultAnswerer

	return ab
}

// WithMatcher sets the action's matcher function
func (ab *ActionBuilder) WithMatcher(matcher standupscot.Matcher) *ActionBuilder {
	ab.action.Match = matcher
	return ab
}

// WithUsage sets the action usage
func (ab *ActionBuilder) WithUsage(usage string) *ActionBuilder {
	ab.action.Usage = usage
	return ab
}

// WithDescription sets the action description
func (ab *ActionBuilder) WithDescription(description string) *ActionBuilder {
	ab.action.Description = description
	return ab
}

// WithDescriptionf sets the action description delegating format and arguments to fmt.Sprintf
func (ab *ActionBuilder) WithDescriptionf(format string, a ...interface{}) *ActionBuilder {
	ab.action.Description = fmt.Sprintf(format, a...)
	return ab
}

// WithAnswerer sets the action's answerer function
func (ab *ActionBuilder) WithAnswerer(answerer standupscot.Answerer) *ActionBuilder {
	ab.action.Answer = answerer
	return ab
}

// Hidden sets the action to hidden
func (ab *ActionBuilder) Hidden() *ActionBuilder {
	ab.action.Hidden = true
	return ab
}

// Build returns the ActionDefinition
func (ab *ActionBuilder) Build() standupscot.ActionDefinition {
	return ab.action
}

// NewScheduledAction returns a new ScheduledActionBuilder to build a new ScheduledActionDefinition
func NewScheduledAction() (sab *ScheduledActionBuilder) {
	sab = new(ScheduledActionBuilder)
	sab.scheduledAction = standupscot.ScheduledActionDefinition{Hidden: false}
	sab.scheduledAction.Action = func(ctx context.Context, today string) error { return nil }

	return sab
}

// WithName sets the name of the scheduled action
func (sab *ScheduledActionBuilder) WithName(name string) *ScheduledActionBuilder {
	sab.scheduledAction.Name = name
	return sab
}

// WithSchedule sets the schedule for the scheduled action
func (sab *ScheduledActionBuilder) WithSchedule(schedule schedule.Definition) *ScheduledActionBuilder {
	sab.scheduledAction.Schedule = schedule
	return sab
}

// WeekdaysOnly marks the scheduled action as one that doesn't run on weekends when those are skipped
func (sab *ScheduledActionBuilder) WeekdaysOnly() *ScheduledActionBuilder {
	sab.scheduledAction.WeekdaysOnly = true
	return sab
}

// WithDescription sets the scheduled action description
func (sab *ScheduledActionBuilder) WithDescription(desc string) *ScheduledActionBuilder {
	sab.scheduledAction.Description = desc
	return sab
}

// WithDescriptionf sets the scheduled action description delegating format and arguments to fmt.Sprintf
func (sab *ScheduledActionBuilder) WithDescriptionf(format string, a ...interface{}) *ScheduledActionBuilder {
	sab.scheduledAction.Description = fmt.Sprintf(format, a...)
	return sab
}

// WithAction sets the action function to run on schedule
func (sab *ScheduledActionBuilder) WithAction(action standupscot.ScheduledAction) *ScheduledActionBuilder {
	sab.scheduledAction.Action = action
	return sab
}

// Hidden sets the scheduled action to hidden
func (sab *ScheduledActionBuilder) Hidden() *ScheduledActionBuilder {
	sab.scheduledAction.Hidden = true
	return sab
}

// Build returns the ScheduledActionDefinition
func (sab *ScheduledActionBuilder) Build() standupscot.ScheduledActionDefinition {
	return sab.scheduledAction
}
