package standupscot

import (
	"context"
	"time"

	"github.com/alexandre-normand/standupscot/schedule"
	"github.com/marcsantiago/gocron"
	"github.com/pkg/errors"
)

// startActionScheduler creates a job for every scheduled action and starts the scheduler. The returned function stops it
func (s *Standupscot) startActionScheduler() (stop func(), err error) {
	gocron.ChangeLoc(s.timeLoc)
	sc := gocron.NewScheduler()

	for _, sa := range s.scheduledActions {
		j, err := schedule.NewJob(sc, sa.Schedule)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid schedule for scheduled action [%s]", sa.Name)
		}

		s.log.Debugf("Adding job [%s] running [%s] to scheduler", sa.Name, sa.Schedule)
		j.Do(s.runScheduledAction, sa)
	}

	_, t := sc.NextRun()
	s.log.Debugf("Starting scheduler with first job scheduled at [%s]", t)

	stopped := sc.Start()

	return func() {
		stopped <- true
	}, nil
}

// runScheduledAction runs the scheduled action with the current standup date. Weekday-only actions are
// skipped on weekends when configured to. Errors are logged and the next scheduled run acts as the retry
func (s *Standupscot) runScheduledAction(sa ScheduledActionDefinition) {
	now := s.now().In(s.timeLoc)
	if sa.WeekdaysOnly && s.skipWeekends && isWeekend(now) {
		s.log.Debugf("Skipping [%s] on [%s]", sa.Name, now.Weekday())
		return
	}

	today := s.Today()
	s.log.Debugf("Running [%s] for [%s]", sa.Name, today)

	if err := sa.Action(context.Background(), today); err != nil {
		s.log.Printf("Scheduled action [%s] for [%s] failed: %v", sa.Name, today, err)
	}
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
