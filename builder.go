package standupscot

import (
	"io"

	"github.com/spf13/viper"
)

// Builder holds a standupscot instance to build
type Builder struct {
	bot *Standupscot
	err error
}

// NewBot returns a new Builder used to set up a new standupscot
func NewBot(name string, v *viper.Viper, service *Service, options ...Option) (sb *Builder) {
	sb = new(Builder)
	sb.bot, sb.err = New(name, v, service, options...)

	return sb
}

// WithCommand adds a command to the standupscot instance
func (sb *Builder) WithCommand(c ActionDefinition) *Builder {
	if sb.err != nil {
		return sb
	}

	sb.bot.RegisterCommand(c)
	return sb
}

// WithScheduledAction adds a scheduled action to the standupscot instance
func (sb *Builder) WithScheduledAction(sa ScheduledActionDefinition) *Builder {
	if sb.err != nil {
		return sb
	}

	sb.bot.RegisterScheduledAction(sa)
	return sb
}

// WithScheduledActionErr adds a scheduled action that has a creation function returning (ScheduledActionDefinition, error)
func (sb *Builder) WithScheduledActionErr(sa ScheduledActionDefinition, err error) *Builder {
	if sb.err == nil && err != nil {
		sb.err = err
	}

	return sb.WithScheduledAction(sa)
}

// WithCloser adds a closer (i.e. the storer) to close when the standupscot instance is closed
func (sb *Builder) WithCloser(closer io.Closer) *Builder {
	if sb.err != nil {
		return sb
	}

	if closer != nil {
		sb.bot.closers = append(sb.bot.closers, closer)
	}

	return sb
}

// Build returns the built standupscot instance. If there was an error during
// setup, the error is returned along with a nil standupscot
func (sb *Builder) Build() (s *Standupscot, err error) {
	if sb.err != nil {
		return nil, sb.err
	}

	return sb.bot, nil
}
