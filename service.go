package standupscot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/alexandre-normand/standupscot/dispatch"
	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/alexandre-normand/standupscot/resolver"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/store"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// History window, in days
const (
	DefaultHistoryDays = 7
	MaxHistoryDays     = 31
)

// Dialog identifiers and element names
const (
	StandupDialogCallbackID = "standup"
	TeamElement             = "team"
	TodayElement            = "standup_today"
	PreviousElement         = "standup_previous"
	BlockersElement         = "blockers"
)

// Saved standup kinds
const (
	newStandup     = "new"
	updatedStandup = "update"
)

var (
	// PromptMessages are sent to members who haven't submitted their standup when the prompt schedule runs
	PromptMessages = []string{
		"Hey :wave: it's standup time! Type `/standup` to tell the team what you're up to today.",
		"Good morning :sunny: What are you working on today? Type `/standup` to share your update.",
		"Ready when you are :memo: Type `/standup` to post your standup for today.",
	}

	// ReminderMessages are sent to members who still haven't submitted their standup ahead of the digest
	ReminderMessages = []string{
		":alarm_clock: Friendly reminder: standups get posted to the channel soon and yours is missing. Type `/standup` to submit it.",
		":hourglass_flowing_sand: There's still time to submit today's standup before it's posted. Type `/standup`.",
		"Don't leave the team hanging :pray: Type `/standup` to submit today's update before the digest goes out.",
	}
)

// Notifier is implemented by any value able to message a user directly and to post to the standup channel
type Notifier interface {
	SendToUser(ctx context.Context, userID string, text string) (err error)

	// Reply answers in the direct message channel a message was received in
	Reply(ctx context.Context, channelID string, text string) (err error)

	PostToChannel(ctx context.Context, text string, blocks []formatter.MessageBlock) (err error)
}

// MembershipRefresher is implemented by any value that refreshes the stored channel members
type MembershipRefresher interface {
	RefreshMembership(ctx context.Context) (count int, err error)
}

// DialogOpener opens interactive dialogs
type DialogOpener interface {
	OpenDialog(ctx context.Context, triggerID string, dialog slack.Dialog) (err error)
}

// Service implements the standup operations: saving and reading standups, prompting late submitters,
// posting digests and managing subscriptions
type Service struct {
	storer         store.Storer
	resolver       *resolver.Resolver
	notifier       Notifier
	refresher      MembershipRefresher
	dialogs        DialogOpener
	postIndividual bool

	randMutex sync.Mutex
	random    *rand.Rand

	log *sLogger
	*instrumenter
}

// ServiceOption defines an option for a Service
type ServiceOption func(s *serviceSettings)

type serviceSettings struct {
	name           string
	postIndividual bool
	logger         *zap.Logger
	debug          bool
	meter          metric.Meter
	randomSource   rand.Source
}

// OptionPostIndividualStandups enables posting of every saved standup to the channel
func OptionPostIndividualStandups(enabled bool) ServiceOption {
	return func(s *serviceSettings) {
		s.postIndividual = enabled
	}
}

// OptionServiceLog sets the zap logger and debug flag used by the service
func OptionServiceLog(logger *zap.Logger, debug bool) ServiceOption {
	return func(s *serviceSettings) {
		s.logger = logger
		s.debug = debug
	}
}

// OptionServiceMeter sets the meter used to record the service metrics. Defaults to the global meter provider
func OptionServiceMeter(meter metric.Meter) ServiceOption {
	return func(s *serviceSettings) {
		s.meter = meter
	}
}

// OptionServiceName sets the name attached to the service metrics
func OptionServiceName(name string) ServiceOption {
	return func(s *serviceSettings) {
		s.name = name
	}
}

// OptionRandomSource sets the source used to pick prompt and reminder messages
func OptionRandomSource(src rand.Source) ServiceOption {
	return func(s *serviceSettings) {
		s.randomSource = src
	}
}

// NewService returns a new Service persisting with storer, messaging users and the channel through notifier,
// refreshing members with refresher and opening dialogs with dialogs
func NewService(storer store.Storer, notifier Notifier, refresher MembershipRefresher, dialogs DialogOpener, opts ...ServiceOption) (s *Service, err error) {
	settings := serviceSettings{
		name:         "standupscot",
		logger:       zap.NewNop(),
		meter:        otel.GetMeterProvider().Meter("github.com/alexandre-normand/standupscot"),
		randomSource: rand.NewSource(time.Now().UnixNano()),
	}

	for _, opt := range opts {
		opt(&settings)
	}

	ins, err := newInstrumenter(settings.name, settings.meter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create instruments")
	}

	return &Service{
		storer:         storer,
		resolver:       resolver.New(storer, storer, storer),
		notifier:       notifier,
		refresher:      refresher,
		dialogs:        dialogs,
		postIndividual: settings.postIndividual,
		random:         rand.New(settings.randomSource),
		log:            NewSLogger(settings.logger, settings.debug),
		instrumenter:   ins,
	}, nil
}

// SaveStandup saves a standup record. A user submitting again on the same day replaces the earlier record. When
// individual posting is enabled, the saved standup is also posted to the channel
func (s *Service) SaveStandup(ctx context.Context, record standup.Record) (err error) {
	if record.DatePosted, err = standup.ParseDate(record.DatePosted); err != nil {
		return err
	}

	if record.Username == "" {
		return fmt.Errorf("missing username for standup on [%s]", record.DatePosted)
	}

	_, err = s.storer.FindByUserAndDate(ctx, record.Username, record.DatePosted)
	switch {
	case err == nil:
		if err = s.storer.Update(ctx, record); err != nil {
			return err
		}
		s.countSaved(ctx, updatedStandup)
	case errors.Is(err, standup.ErrNotFound):
		if err = s.storer.Insert(ctx, record); err != nil {
			return err
		}
		s.countSaved(ctx, newStandup)
	default:
		return err
	}

	s.log.Debugf("Saved standup [%s]", record)

	if s.postIndividual {
		if err = s.PostIndividualStandup(ctx, record); err != nil {
			return pkgerrors.Wrapf(err, "standup [%s] saved but posting it to the channel failed", record)
		}
	}

	return nil
}

// PostIndividualStandup posts a single standup to the channel
func (s *Service) PostIndividualStandup(ctx context.Context, record standup.Record) (err error) {
	return s.notifier.PostToChannel(ctx, formatter.SingleHeadline(record.DatePosted), []formatter.MessageBlock{formatter.FormatSingle(record)})
}

// PromptLateSubmitters sends message to every member who hasn't submitted a standup for date and didn't opt out. If
// late submitters can't be resolved, nobody is messaged and the error is returned. Otherwise, every late submitter
// gets a message attempt and failures are returned together once all were attempted
func (s *Service) PromptLateSubmitters(ctx context.Context, date string, message string) (sent int, err error) {
	cycleID := uuid.New().String()

	var lateSubmitters []string
	d := measure(func() {
		lateSubmitters, err = s.resolver.ResolveLateSubmitters(ctx, date)
	})
	s.recordResolveLatency(ctx, d)

	if err != nil {
		s.log.Printf("[%s] Failed to resolve late submitters for [%s], nobody will be prompted: %v", cycleID, date, err)
		return 0, err
	}

	s.log.Printf("[%s] Prompting [%d] late submitters for [%s]", cycleID, len(lateSubmitters), date)

	for _, u := range lateSubmitters {
		sendErr := s.notifier.SendToUser(ctx, u, message)
		s.countReminder(ctx, sendErr)

		if sendErr != nil {
			s.log.Printf("[%s] Failed to prompt [%s]: %v", cycleID, u, sendErr)
			err = multierr.Append(err, pkgerrors.Wrapf(sendErr, "failed to prompt [%s]", u))
			continue
		}

		sent = sent + 1
	}

	s.log.Debugf("[%s] Prompted [%d] of [%d] late submitters", cycleID, sent, len(lateSubmitters))

	return sent, err
}

// PromptStandups prompts late submitters for date with a randomly picked prompt message
func (s *Service) PromptStandups(ctx context.Context, date string) (sent int, err error) {
	return s.PromptLateSubmitters(ctx, date, s.pickMessage(PromptMessages))
}

// RemindLateSubmitters reminds late submitters for date with a randomly picked reminder message
func (s *Service) RemindLateSubmitters(ctx context.Context, date string) (sent int, err error) {
	return s.PromptLateSubmitters(ctx, date, s.pickMessage(ReminderMessages))
}

func (s *Service) pickMessage(messages []string) string {
	s.randMutex.Lock()
	defer s.randMutex.Unlock()

	return messages[s.random.Intn(len(messages))]
}

// PostDigest posts all standups of date to the channel grouped by team. If nobody submitted a standup, a
// "nothing to show" message is posted instead
func (s *Service) PostDigest(ctx context.Context, date string) (err error) {
	defer func() {
		s.countDigest(ctx, err)
	}()

	if date, err = standup.ParseDate(date); err != nil {
		return err
	}

	records, err := s.storer.FindByDate(ctx, date)
	if err != nil {
		return err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Team < records[j].Team
	})

	blocks, err := formatter.FormatDigest(records)
	if errors.Is(err, standup.ErrNoContent) {
		s.log.Debugf("No standups for [%s], posting placeholder", date)
		return s.notifier.PostToChannel(ctx, formatter.NoContentHeadline(date), nil)
	} else if err != nil {
		return err
	}

	return s.notifier.PostToChannel(ctx, formatter.DigestHeadline(date), blocks)
}

// History returns the standups of username for the last days days up to today (inclusive). The number of
// days defaults to DefaultHistoryDays when not positive and is capped to MaxHistoryDays
func (s *Service) History(ctx context.Context, username string, days int, today string) (records []standup.Record, err error) {
	if days <= 0 {
		days = DefaultHistoryDays
	} else if days > MaxHistoryDays {
		days = MaxHistoryDays
	}

	from, err := standup.DaysBefore(today, days)
	if err != nil {
		return nil, err
	}

	return s.storer.FindHistory(ctx, username, from, today)
}

// TodayStandup returns the standup username posted on date. An ErrNotFound error is returned if there's none
func (s *Service) TodayStandup(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	return s.storer.FindByUserAndDate(ctx, username, date)
}

// Subscribe opts username back in standup prompts
func (s *Service) Subscribe(ctx context.Context, username string) (err error) {
	return s.storer.OptIn(ctx, username)
}

// Unsubscribe opts username out of standup prompts
func (s *Service) Unsubscribe(ctx context.Context, username string) (err error) {
	return s.storer.OptOut(ctx, username)
}

// IsUnsubscribed returns true if username opted out of standup prompts
func (s *Service) IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error) {
	return s.storer.IsUnsubscribed(ctx, username)
}

// RefreshMembership refreshes the stored channel members from the chat platform
func (s *Service) RefreshMembership(ctx context.Context) (count int, err error) {
	count, err = s.refresher.RefreshMembership(ctx)
	s.countRefresh(ctx, count, err)

	if err != nil {
		return 0, err
	}

	s.log.Printf("Refreshed membership with [%d] members", count)
	return count, nil
}

// OpenStandupDialog opens the standup submission dialog for username. If username already submitted a
// standup for date, the dialog is pre-filled with it
func (s *Service) OpenStandupDialog(ctx context.Context, triggerID string, username string, date string) (err error) {
	existing, err := s.storer.FindByUserAndDate(ctx, username, date)
	if err != nil && !errors.Is(err, standup.ErrNotFound) {
		return err
	}

	return s.dialogs.OpenDialog(ctx, triggerID, NewStandupDialog(date, existing))
}

// NewStandupDialog returns the standup submission dialog for date. The dialog state carries the date so that
// a submission is saved for the day it was opened
func NewStandupDialog(date string, existing *standup.Record) (dialog slack.Dialog) {
	var team, today, previous, blockers string
	if existing != nil {
		team = existing.Team
		today = existing.Today
		previous = valueOrEmpty(existing.Previous)
		blockers = valueOrEmpty(existing.Blockers)
	}

	teamInput := slack.NewTextInput(TeamElement, "Team", team)
	teamInput.MaxLength = 64

	todayInput := slack.NewTextAreaInput(TodayElement, "What are you working on today?", today)
	todayInput.MaxLength = 3000

	previousInput := slack.NewTextAreaInput(PreviousElement, "What did you do yesterday/previously?", previous)
	previousInput.Optional = true
	previousInput.MaxLength = 3000

	blockersInput := slack.NewTextAreaInput(BlockersElement, "Anything blocking you?", blockers)
	blockersInput.Optional = true
	blockersInput.MaxLength = 3000

	return slack.Dialog{
		CallbackID:  StandupDialogCallbackID,
		Title:       "Daily standup",
		SubmitLabel: "Submit",
		State:       date,
		Elements:    []slack.DialogElement{teamInput, todayInput, previousInput, blockersInput},
	}
}

func valueOrEmpty(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}

var _ Notifier = (*dispatch.Dispatcher)(nil)
