package commands_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/commands"
	"github.com/alexandre-normand/standupscot/config"
	"github.com/alexandre-normand/standupscot/schedule"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/test/assertaction"
	"github.com/alexandre-normand/standupscot/test/assertanswer"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const today = "2024-01-02"

func newMessage(text string) *standupscot.IncomingMessage {
	return &standupscot.IncomingMessage{User: "U1", NormalizedText: text, Text: text, Today: today}
}

func TestCommandMatching(t *testing.T) {
	cmds := commands.New(&mockServicer{})

	testCases := []struct {
		text          string
		expectedUsage string
	}{
		{"unsubscribe", "unsubscribe"},
		{"UNSUBSCRIBE please", "unsubscribe"},
		{"subscribe", "subscribe"},
		{"status", "status"},
		{"history", "history [days]"},
		{"history 14", "history [days]"},
		{"history fourteen", ""},
		{"subscriber", ""},
		{"hello", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			matched := ""
			for _, c := range cmds {
				if c.Match(newMessage(tc.text)) {
					matched = c.Usage
					break
				}
			}

			assert.Equal(t, tc.expectedUsage, matched)
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	ms := &mockServicer{}
	ms.On("Unsubscribe", mock.Anything, "U1").Return(nil)

	assertaction.FirstMatchAnswers(t, commands.New(ms), newMessage("unsubscribe"), func(t *testing.T, a *standupscot.Answer) bool {
		return assertanswer.HasTextContaining(t, a, "You're unsubscribed") && assertanswer.IsEphemeral(t, a)
	})
	ms.AssertExpectations(t)
}

func TestSubscribeFailure(t *testing.T) {
	ms := &mockServicer{}
	ms.On("Subscribe", mock.Anything, "U1").Return(standup.StoreUnavailable("optIn", fmt.Errorf("disk full")))

	assertaction.FirstMatchAnswers(t, commands.New(ms), newMessage("subscribe"), func(t *testing.T, a *standupscot.Answer) bool {
		return assertanswer.HasTextContaining(t, a, ":warning: Sorry, I couldn't subscribe you") && assertanswer.HasTextContaining(t, a, "disk full")
	})
}

func TestStatusWithStandup(t *testing.T) {
	ms := &mockServicer{}
	blockers := "waiting on review"
	ms.On("TodayStandup", mock.Anything, "U1", today).Return(&standup.Record{Username: "U1", Team: "core", DatePosted: today, Today: "ship it", Blockers: &blockers}, nil)

	assertaction.FirstMatchAnswers(t, commands.New(ms), newMessage("status"), func(t *testing.T, a *standupscot.Answer) bool {
		return assertanswer.HasText(t, a, "*Jan 2nd 2024* (team `core`)\n\t• *Today*: ship it\n\t• *Blockers*: waiting on review\n")
	})
}

func TestStatusWithoutStandup(t *testing.T) {
	ms := &mockServicer{}
	ms.On("TodayStandup", mock.Anything, "U1", today).Return(nil, standup.NotFound("find", "no standup"))

	assertaction.FirstMatchAnswers(t, commands.New(ms), newMessage("status"), func(t *testing.T, a *standupscot.Answer) bool {
		return assertanswer.HasText(t, a, "You haven't posted your standup for Jan 2nd 2024 yet. Type `/standup` to submit it.")
	})
}

func TestHistoryDays(t *testing.T) {
	testCases := []struct {
		text         string
		expectedDays int
	}{
		{"history", 0},
		{"history 14", 14},
		{"history 90", 90},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			ms := &mockServicer{}
			ms.On("History", mock.Anything, "U1", tc.expectedDays, today).Return([]standup.Record{}, nil)

			assertaction.FirstMatchAnswers(t, commands.New(ms), newMessage(tc.text), func(t *testing.T, a *standupscot.Answer) bool {
				return assertanswer.HasText(t, a, "I couldn't find any standup from you for that period.")
			})
			ms.AssertExpectations(t)
		})
	}
}

func TestHistoryWithRecords(t *testing.T) {
	ms := &mockServicer{}
	previous := "wrote docs"
	ms.On("History", mock.Anything, "U1", 3, today).Return([]standup.Record{
		{Username: "U1", Team: "core", DatePosted: "2024-01-01", Today: "tests"},
		{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "release", Previous: &previous},
	}, nil)

	assertaction.FirstMatchAnswers(t, commands.New(ms), newMessage("history 3"), func(t *testing.T, a *standupscot.Answer) bool {
		return assertanswer.HasText(t, a, "Here are your last 2 standups:\n\n"+
			"*Jan 1st 2024* (team `core`)\n\t• *Today*: tests\n\n"+
			"*Jan 2nd 2024* (team `core`)\n\t• *Today*: release\n\t• *Yesterday/Previously*: wrote docs\n\n")
	})
}

func TestNewScheduledActionsWithDefaults(t *testing.T) {
	ms := &mockServicer{}
	ms.On("RefreshMembership", mock.Anything).Return(3, nil)
	ms.On("PromptStandups", mock.Anything, today).Return(2, nil)
	ms.On("RemindLateSubmitters", mock.Anything, today).Return(0, errors.New("store unavailable"))
	ms.On("PostDigest", mock.Anything, today).Return(nil)

	sas, err := commands.NewScheduledActions(ms, config.NewViperWithDefaults())
	require.NoError(t, err)
	require.Len(t, sas, 4)

	byName := make(map[string]standupscot.ScheduledActionDefinition)
	for _, sa := range sas {
		byName[sa.Name] = sa
	}

	assert.Equal(t, schedule.Definition{Interval: 1, Unit: schedule.Hours}, byName[config.RefreshMembersSchedule].Schedule)
	assert.False(t, byName[config.RefreshMembersSchedule].WeekdaysOnly)
	assert.Equal(t, schedule.Definition{Interval: 1, Unit: schedule.Days, AtTime: "09:00"}, byName[config.PromptSchedule].Schedule)
	assert.True(t, byName[config.PromptSchedule].WeekdaysOnly)
	assert.True(t, byName[config.ReminderSchedule].WeekdaysOnly)
	assert.True(t, byName[config.DigestSchedule].WeekdaysOnly)

	ctx := context.Background()
	assert.NoError(t, byName[config.RefreshMembersSchedule].Action(ctx, today))
	assert.NoError(t, byName[config.PromptSchedule].Action(ctx, today))
	assert.EqualError(t, byName[config.ReminderSchedule].Action(ctx, today), "store unavailable")
	assert.NoError(t, byName[config.DigestSchedule].Action(ctx, today))

	ms.AssertExpectations(t)
}

func TestNewScheduledActionsWithInvalidSchedule(t *testing.T) {
	v := viper.New()
	v.Set("schedules.refreshMembers.interval", 0)
	v.Set("schedules.refreshMembers.unit", "hours")

	_, err := commands.NewScheduledActions(&mockServicer{}, v)

	assert.Error(t, err)
}
