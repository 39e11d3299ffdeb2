package standupscot

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	helpCommandName = "help"
)

// helpCommand returns the command listing all visible commands and scheduled actions
func (s *Standupscot) helpCommand() ActionDefinition {
	return ActionDefinition{
		Match: func(m *IncomingMessage) bool {
			return strings.HasPrefix(m.NormalizedText, helpCommandName)
		},
		Usage:       helpCommandName,
		Description: "Reply with usage instructions",
		Answer:      s.showHelp,
	}
}

// showHelp generates a message providing a list of all of the standupscot commands and scheduled actions.
// Note that definitions with the flag Hidden set to true won't be included in the list
func (s *Standupscot) showHelp(ctx context.Context, m *IncomingMessage) *Answer {
	var b strings.Builder

	fmt.Fprintf(&b, "🤝 Hi, <@%s>! I'm `%s` (engine `v%s`) and I run the team's daily standups :memo:.\n", m.User, s.name, VERSION)
	fmt.Fprintf(&b, "Type `/standup` to submit or edit today's standup.\n")

	commands := filterNonHiddenActions(s.allCommands())
	if len(commands) > 0 {
		fmt.Fprintf(&b, "\nI currently support the following commands:\n")

		appendActions(&b, commands)
	}

	scheduledActions := filterNonHiddenScheduledActions(s.scheduledActions)
	if len(scheduledActions) > 0 {
		fmt.Fprintf(&b, "\nAnd do those things periodically:\n")

		appendScheduledActions(&b, s.timeLoc.String(), s.skipWeekends, scheduledActions)
	}

	return &Answer{Text: b.String()}
}

func appendActions(w io.Writer, actions []ActionDefinition) {
	for _, value := range actions {
		if value.Usage != "" {
			fmt.Fprintf(w, "\t• `%s` - %s\n", value.Usage, value.Description)
		}
	}
}

func appendScheduledActions(w io.Writer, timeLocationName string, skipWeekends bool, scheduledActions []ScheduledActionDefinition) {
	for _, value := range scheduledActions {
		weekdays := ""
		if skipWeekends && value.WeekdaysOnly {
			weekdays = ", weekdays only"
		}

		fmt.Fprintf(w, "\t• `%s` (`%s`%s) - %s\n", value.Schedule, timeLocationName, weekdays, value.Description)
	}
}

func filterNonHiddenActions(actions []ActionDefinition) (visibleActions []ActionDefinition) {
	visibleActions = make([]ActionDefinition, 0)
	for _, a := range actions {
		if !a.Hidden {
			visibleActions = append(visibleActions, a)
		}
	}

	return visibleActions
}

func filterNonHiddenScheduledActions(actions []ScheduledActionDefinition) (visibleActions []ScheduledActionDefinition) {
	visibleActions = make([]ScheduledActionDefinition, 0)

	for _, sa := range actions {
		if !sa.Hidden {
			visibleActions = append(visibleActions, sa)
		}
	}

	return visibleActions
}
