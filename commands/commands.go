// Package commands defines the standupscot commands users send as direct messages or as slash command text, along with
// the scheduled actions running the daily standup cycle
package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/actions"
	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/alexandre-normand/standupscot/standup"
)

// StandupServicer is implemented by the standup service operations used by commands
type StandupServicer interface {
	Subscribe(ctx context.Context, username string) (err error)
	Unsubscribe(ctx context.Context, username string) (err error)
	TodayStandup(ctx context.Context, username string, date string) (record *standup.Record, err error)
	History(ctx context.Context, username string, days int, today string) (records []standup.Record, err error)
}

var (
	unsubscribeRegex = regexp.MustCompile(`(?i)\Aunsubscribe\b`)
	subscribeRegex   = regexp.MustCompile(`(?i)\Asubscribe\b`)
	statusRegex      = regexp.MustCompile(`(?i)\Astatus\b`)
	historyRegex     = regexp.MustCompile(`(?i)\Ahistory(?:\s+(\d+))?\s*\z`)
)

// Commands holds the standup commands
type Commands struct {
	service StandupServicer
}

// New returns the standup commands acting on service
func New(service StandupServicer) (commands []standupscot.ActionDefinition) {
	c := &Commands{service: service}

	return []standupscot.ActionDefinition{
		actions.NewCommand().
			WithMatcher(matchRegex(unsubscribeRegex)).
			WithUsage("unsubscribe").
			WithDescription("Stop receiving standup prompts and reminders").
			WithAnswerer(c.unsubscribe).
			Build(),
		actions.NewCommand().
			WithMatcher(matchRegex(subscribeRegex)).
			WithUsage("subscribe").
			WithDescription("Receive standup prompts and reminders again").
			WithAnswerer(c.subscribe).
			Build(),
		actions.NewCommand().
			WithMatcher(matchRegex(statusRegex)).
			WithUsage("status").
			WithDescription("Show your standup for today").
			WithAnswerer(c.status).
			Build(),
		actions.NewCommand().
			WithMatcher(matchRegex(historyRegex)).
			WithUsage("history [days]").
			WithDescriptionf("Show your standups of the last `days` days (defaults to %d, up to %d)", standupscot.DefaultHistoryDays, standupscot.MaxHistoryDays).
			WithAnswerer(c.history).
			Build(),
	}
}

func matchRegex(r *regexp.Regexp) standupscot.Matcher {
	return func(m *standupscot.IncomingMessage) bool {
		return r.MatchString(m.NormalizedText)
	}
}

func (c *Commands) unsubscribe(ctx context.Context, m *standupscot.IncomingMessage) *standupscot.Answer {
	if err := c.service.Unsubscribe(ctx, m.User); err != nil {
		return failureAnswer("unsubscribe you", err)
	}

	return &standupscot.Answer{Text: "You're unsubscribed :wave: I won't prompt or remind you anymore. Send `subscribe` to opt back in."}
}

func (c *Commands) subscribe(ctx context.Context, m *standupscot.IncomingMessage) *standupscot.Answer {
	if err := c.service.Subscribe(ctx, m.User); err != nil {
		return failureAnswer("subscribe you", err)
	}

	return &standupscot.Answer{Text: "Welcome back :tada: I'll prompt you for your standups again."}
}

func (c *Commands) status(ctx context.Context, m *standupscot.IncomingMessage) *standupscot.Answer {
	record, err := c.service.TodayStandup(ctx, m.User, m.Today)
	if errors.Is(err, standup.ErrNotFound) {
		return &standupscot.Answer{Text: fmt.Sprintf("You haven't posted your standup for %s yet. Type `/standup` to submit it.", standup.HumanDate(m.Today))}
	} else if err != nil {
		return failureAnswer("find your standup", err)
	}

	return &standupscot.Answer{Text: renderRecord(*record)}
}

func (c *Commands) history(ctx context.Context, m *standupscot.IncomingMessage) *standupscot.Answer {
	days := 0
	if match := historyRegex.FindStringSubmatch(m.NormalizedText); len(match) > 1 && match[1] != "" {
		days, _ = strconv.Atoi(match[1])
	}

	records, err := c.service.History(ctx, m.User, days, m.Today)
	if err != nil {
		return failureAnswer("load your history", err)
	}

	if len(records) == 0 {
		return &standupscot.Answer{Text: "I couldn't find any standup from you for that period."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your last %d standups:\n\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "%s\n", renderRecord(r))
	}

	return &standupscot.Answer{Text: b.String()}
}

// renderRecord renders a standup as text
func renderRecord(r standup.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s* (team `%s`)\n", standup.HumanDate(r.DatePosted), r.Team)
	fmt.Fprintf(&b, "\t• *%s*: %s\n", formatter.TodayTitle, r.Today)

	if r.Previous != nil {
		fmt.Fprintf(&b, "\t• *%s*: %s\n", formatter.PreviousTitle, *r.Previous)
	}

	if r.Blockers != nil {
		fmt.Fprintf(&b, "\t• *%s*: %s\n", formatter.BlockersTitle, *r.Blockers)
	}

	return b.String()
}

func failureAnswer(action string, err error) *standupscot.Answer {
	return &standupscot.Answer{Text: fmt.Sprintf(":warning: Sorry, I couldn't %s: `%v`", action, err)}
}
