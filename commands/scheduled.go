package commands

import (
	"context"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/actions"
	"github.com/alexandre-normand/standupscot/config"
	"github.com/spf13/viper"
)

// CycleServicer is implemented by the standup service operations run on schedule
type CycleServicer interface {
	RefreshMembership(ctx context.Context) (count int, err error)
	PromptStandups(ctx context.Context, date string) (sent int, err error)
	RemindLateSubmitters(ctx context.Context, date string) (sent int, err error)
	PostDigest(ctx context.Context, date string) (err error)
}

// NewScheduledActions returns the scheduled actions of the standup cycle with their schedules read from v: membership
// refresh, prompt, reminder and digest. All but the membership refresh only run on weekdays when weekends are skipped
func NewScheduledActions(service CycleServicer, v *viper.Viper) (scheduledActions []standupscot.ScheduledActionDefinition, err error) {
	refresh, err := config.GetSchedule(v, config.RefreshMembersSchedule)
	if err != nil {
		return nil, err
	}

	prompt, err := config.GetSchedule(v, config.PromptSchedule)
	if err != nil {
		return nil, err
	}

	reminder, err := config.GetSchedule(v, config.ReminderSchedule)
	if err != nil {
		return nil, err
	}

	digest, err := config.GetSchedule(v, config.DigestSchedule)
	if err != nil {
		return nil, err
	}

	return []standupscot.ScheduledActionDefinition{
		actions.NewScheduledAction().
			WithName(config.RefreshMembersSchedule).
			WithSchedule(refresh).
			WithDescription("Refresh the list of channel members").
			WithAction(func(ctx context.Context, today string) (err error) {
				_, err = service.RefreshMembership(ctx)
				return err
			}).
			Build(),
		actions.NewScheduledAction().
			WithName(config.PromptSchedule).
			WithSchedule(prompt).
			WeekdaysOnly().
			WithDescription("Prompt channel members for their standup").
			WithAction(func(ctx context.Context, today string) (err error) {
				_, err = service.PromptStandups(ctx, today)
				return err
			}).
			Build(),
		actions.NewScheduledAction().
			WithName(config.ReminderSchedule).
			WithSchedule(reminder).
			WeekdaysOnly().
			WithDescription("Remind late submitters before the digest goes out").
			WithAction(func(ctx context.Context, today string) (err error) {
				_, err = service.RemindLateSubmitters(ctx, today)
				return err
			}).
			Build(),
		actions.NewScheduledAction().
			WithName(config.DigestSchedule).
			WithSchedule(digest).
			WeekdaysOnly().
			WithDescription("Post the digest of today's standups to the channel").
			WithAction(service.PostDigest).
			Build(),
	}, nil
}
