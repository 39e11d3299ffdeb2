// Package standupscot provides a slack bot running daily standups for a channel. It prompts the channel members
// who haven't submitted their standup, reminds them before the digest goes out and posts the digest of all
// standups grouped by team. Users interact with it through a slash command, a dialog and direct messages.
package standupscot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alexandre-normand/standupscot/config"
	"github.com/alexandre-normand/standupscot/schedule"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// VERSION represents the current standupscot version
const VERSION = "1.0.0"

// Standupscot represents the bot engine: its commands, scheduled actions and the standup service they act on
type Standupscot struct {
	name             string
	config           *viper.Viper
	service          *Service
	commands         []ActionDefinition
	scheduledActions []ScheduledActionDefinition
	defaultAnswer    Answerer

	timeLoc       *time.Location
	skipWeekends  bool
	signingSecret string
	now           func() time.Time

	// inflight tracks direct messages still being processed after their event was acknowledged
	inflight sync.WaitGroup

	closers []io.Closer
	log     *sLogger
}

// IncomingMessage holds a message sent to the bot either as a direct message or as slash command text
type IncomingMessage struct {
	// User is the id of the user who sent the message
	User string

	// ChannelID is the channel the message was sent in
	ChannelID string

	// Text is the raw text of the message
	Text string

	// NormalizedText is the text stripped of the bot mention and surrounding spaces
	NormalizedText string

	// TriggerID is set for slash commands and can be used to open a dialog
	TriggerID string

	// Today is the standup date when the message was received
	Today string
}

// ActionDefinition represents how an action is triggered, published, used and described
// along with defining the function defining its behavior
type ActionDefinition struct {
	// Indicates whether the action should be omitted from the help message
	Hidden bool

	// Matcher that will determine whether or not the action should be triggered
	Match Matcher

	// Usage example
	Usage string

	// Help description for the action
	Description string

	// Function to execute if the Matcher matches
	Answer Answerer
}

// Matcher is the function that determines whether or not an action should be triggered. Note that a match doesn't guarantee that the action should
// actually respond with anything once invoked
type Matcher func(m *IncomingMessage) bool

// Answerer is what gets executed when an ActionDefinition is triggered. To signal the absence of an answer, an action should return nil
type Answerer func(ctx context.Context, m *IncomingMessage) *Answer

// ScheduledActionDefinition represents when a scheduled action is triggered as well
// as what it does and how
type ScheduledActionDefinition struct {
	// Indicates whether the action should be omitted from the help message
	Hidden bool

	// Name of the action, as used in the schedules configuration
	Name string

	// Schedule definition determining when the action runs
	Schedule schedule.Definition

	// WeekdaysOnly marks actions that don't run on saturdays and sundays when weekends are skipped
	WeekdaysOnly bool

	// Help description for the scheduled action
	Description string

	// Action is the function that is invoked when the schedule activates
	Action ScheduledAction
}

// ScheduledAction is what gets executed when a ScheduledActionDefinition is triggered (by its schedule). The
// standup date at the time of the trigger is passed explicitly
type ScheduledAction func(ctx context.Context, today string) (err error)

// String returns a friendly description of a ScheduledActionDefinition
func (a ScheduledActionDefinition) String() string {
	return fmt.Sprintf("`%s` - %s", a.Schedule, a.Description)
}

// String returns a friendly description of an ActionDefinition
func (a ActionDefinition) String() string {
	return fmt.Sprintf("`%s` - %s", a.Usage, a.Description)
}

// Option defines an option for a Standupscot
type Option func(*Standupscot)

// OptionLog sets the zap logger used by standupscot
func OptionLog(logger *zap.Logger) Option {
	return func(s *Standupscot) {
		s.log = NewSLogger(logger, s.config.GetBool(config.DebugKey))
	}
}

// OptionNowFunc sets the clock used to compute the standup date
func OptionNowFunc(now func() time.Time) Option {
	return func(s *Standupscot) {
		s.now = now
	}
}

// New returns a new Standupscot instance acting on service and configured with v
func New(name string, v *viper.Viper, service *Service, options ...Option) (s *Standupscot, err error) {
	timeLoc, err := config.GetTimeLocation(v)
	if err != nil {
		return nil, err
	}

	s = &Standupscot{
		name:             name,
		config:           v,
		service:          service,
		commands:         make([]ActionDefinition, 0),
		scheduledActions: make([]ScheduledActionDefinition, 0),
		timeLoc:          timeLoc,
		skipWeekends:     v.GetBool(config.SkipWeekendsKey),
		signingSecret:    v.GetString(config.SigningSecretKey),
		now:              time.Now,
		closers:          make([]io.Closer, 0),
		log:              NewSLogger(zap.NewNop(), false),
	}

	s.defaultAnswer = func(ctx context.Context, m *IncomingMessage) *Answer {
		return &Answer{Text: fmt.Sprintf("I don't understand, ask me for `%s` to get a list of things I do", helpCommandName)}
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// RegisterCommand registers a command with the engine. This should be invoked prior to calling Run
func (s *Standupscot) RegisterCommand(c ActionDefinition) {
	s.commands = append(s.commands, c)
}

// RegisterScheduledAction registers a scheduled action with the engine. This should be invoked prior to calling Run
func (s *Standupscot) RegisterScheduledAction(sa ScheduledActionDefinition) {
	s.scheduledActions = append(s.scheduledActions, sa)
}

// Today returns the current standup date in the configured time location
func (s *Standupscot) Today() string {
	return standup.FormatDate(s.now(), s.timeLoc)
}

// Run starts the scheduler and serves the slack endpoints until ctx is done or the process receives a
// termination signal
func (s *Standupscot) Run(ctx context.Context) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopScheduler, err := s.startActionScheduler()
	if err != nil {
		return err
	}
	defer stopScheduler()

	server := &http.Server{Addr: s.config.GetString(config.ListenAddressKey), Handler: s.Handler()}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Printf("Listening on [%s]", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		return err
	case <-ctx.Done():
		s.log.Debugf("Shutting down: %v", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// Close waits for direct messages still being processed and then closes all closers of this standupscot. All
// closers are attempted to be closed and their errors are combined
func (s *Standupscot) Close() (err error) {
	s.inflight.Wait()

	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}

	return err
}
