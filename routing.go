package standupscot

import (
	"context"
	"regexp"
	"strings"
)

// Matches a leading user mention (i.e. "<@U0123ABC> ")
var mentionPrefix = regexp.MustCompile(`^<@[A-Z0-9]+>[:,]?\s*`)

// normalize returns the text of a message stripped of a leading mention and surrounding spaces
func normalize(text string) string {
	return strings.TrimSpace(mentionPrefix.ReplaceAllString(strings.TrimSpace(text), ""))
}

// newIncomingMessage returns a new IncomingMessage received now
func (s *Standupscot) newIncomingMessage(user string, channelID string, text string, triggerID string) (m *IncomingMessage) {
	return &IncomingMessage{
		User:           user,
		ChannelID:      channelID,
		Text:           text,
		NormalizedText: normalize(text),
		TriggerID:      triggerID,
		Today:          s.Today(),
	}
}

// routeMessage returns the answer of the first matching command answering the message or the default answer
// if none did
func (s *Standupscot) routeMessage(ctx context.Context, source string, m *IncomingMessage) (answer *Answer) {
	s.service.countCommand(ctx, source)

	for _, c := range s.allCommands() {
		if c.Match(m) {
			s.log.Debugf("Command [%s] matched [%s]", c.Usage, m.NormalizedText)

			if answer = c.Answer(ctx, m); answer != nil {
				return answer
			}
		}
	}

	return s.defaultAnswer(ctx, m)
}

// allCommands returns the registered commands followed by the help command
func (s *Standupscot) allCommands() (commands []ActionDefinition) {
	commands = make([]ActionDefinition, 0, len(s.commands)+1)
	commands = append(commands, s.commands...)

	return append(commands, s.helpCommand())
}
