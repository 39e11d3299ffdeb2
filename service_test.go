package standupscot_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/dispatch"
	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/alexandre-normand/standupscot/membership"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/store"
	"github.com/alexandre-normand/standupscot/store/mocks"
	"github.com/alexandre-normand/standupscot/test/capture"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

// fixture holds a service wired to a leveldb storer and a chat captor
type fixture struct {
	captor  *capture.ChatCaptor
	storer  store.Storer
	service *standupscot.Service
}

func newCaptor() (captor *capture.ChatCaptor) {
	captor = capture.NewChatCaptor(
		[]chat.DirectMessageChannel{{User: "U1", ChannelID: "D1"}, {User: "U2", ChannelID: "D2"}, {User: "U3", ChannelID: "D3"}},
		[]chat.Channel{{ID: "C0", Name: "random"}, {ID: "C1", Name: "standup", IsMember: true}})
	captor.ChannelMembers["C1"] = []string{"U1", "U2", "U3"}

	return captor
}

func newFixture(t *testing.T, opts ...standupscot.ServiceOption) (f *fixture) {
	t.Helper()

	storer, err := store.NewLevelDB("standups", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		storer.Close()
	})

	f = &fixture{captor: newCaptor(), storer: storer}
	f.service = newService(t, f.captor, storer, opts...)

	return f
}

func newDispatcher(t *testing.T, captor *capture.ChatCaptor, opts ...dispatch.Option) *dispatch.Dispatcher {
	t.Helper()

	finder, err := chat.NewCachingDirectChannelFinder(captor, 10)
	require.NoError(t, err)

	return dispatch.New(captor, finder, append([]dispatch.Option{dispatch.OptionRateLimit(1000, 100)}, opts...)...)
}

func newService(t *testing.T, captor *capture.ChatCaptor, storer store.Storer, opts ...standupscot.ServiceOption) *standupscot.Service {
	t.Helper()

	return newServiceWithDispatcher(t, captor, storer, newDispatcher(t, captor), opts...)
}

func newServiceWithDispatcher(t *testing.T, captor *capture.ChatCaptor, storer store.Storer, dispatcher *dispatch.Dispatcher, opts ...standupscot.ServiceOption) *standupscot.Service {
	t.Helper()

	refresher := membership.New(captor, storer, "")

	opts = append([]standupscot.ServiceOption{
		standupscot.OptionServiceMeter(noop.NewMeterProvider().Meter("test")),
		standupscot.OptionRandomSource(rand.NewSource(1)),
	}, opts...)

	s, err := standupscot.NewService(storer, dispatcher, refresher, captor, opts...)
	require.NoError(t, err)

	return s
}

func strPtr(s string) *string {
	return &s
}

func TestSaveStandupInsertsThenReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.SaveStandup(ctx, standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "first"}))
	require.NoError(t, f.service.SaveStandup(ctx, standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "second", Blockers: strPtr("ci")}))

	records, err := f.storer.FindByDate(ctx, "2024-01-02")
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, "second", records[0].Today)
		assert.Equal(t, strPtr("ci"), records[0].Blockers)
	}

	assert.Empty(t, f.captor.PostedMessages)
}

func TestSaveStandupValidation(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.service.SaveStandup(context.Background(), standup.Record{Username: "U1", Team: "core", DatePosted: "Jan 2nd", Today: "a"}))
	assert.EqualError(t, f.service.SaveStandup(context.Background(), standup.Record{Team: "core", DatePosted: "2024-01-02", Today: "a"}), "missing username for standup on [2024-01-02]")
}

func TestSaveStandupWithStoreFailure(t *testing.T) {
	ms := &mocks.Storer{}
	ms.On("FindByUserAndDate", mock.Anything, "U1", "2024-01-02").Return(nil, standup.StoreUnavailable("find", fmt.Errorf("connection refused")))

	s := newService(t, newCaptor(), ms)

	err := s.SaveStandup(context.Background(), standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "a"})
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrStoreUnavailable))
	}

	ms.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	ms.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSaveStandupPostsIndividualStandup(t *testing.T) {
	f := newFixture(t, standupscot.OptionPostIndividualStandups(true))
	rec := standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "ship it"}

	require.NoError(t, f.service.SaveStandup(context.Background(), rec))

	if assert.Len(t, f.captor.PostedMessages, 1) {
		posted := f.captor.PostedMessages[0]
		assert.Equal(t, "C1", posted.ChannelID)
		assert.Equal(t, formatter.SingleHeadline("2024-01-02"), posted.Text)
		assert.Equal(t, []formatter.MessageBlock{formatter.FormatSingle(rec)}, posted.Blocks)
	}
}

func TestSaveStandupKeepsRecordWhenIndividualPostFails(t *testing.T) {
	f := newFixture(t, standupscot.OptionPostIndividualStandups(true))
	f.captor.FailingChannels["C1"] = true
	ctx := context.Background()

	err := f.service.SaveStandup(ctx, standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "ship it"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "saved but posting it to the channel failed")
		assert.True(t, errors.Is(err, standup.ErrPlatformUnavailable))
	}

	rec, err := f.storer.FindByUserAndDate(ctx, "U1", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, "ship it", rec.Today)
}

func TestPromptStandupsMessagesLateSubmittersOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	count, err := f.service.RefreshMembership(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, f.service.SaveStandup(ctx, standup.Record{Username: "U2", Team: "core", DatePosted: "2024-01-02", Today: "a"}))
	require.NoError(t, f.service.Unsubscribe(ctx, "U3"))

	sent, err := f.service.PromptStandups(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	if assert.Len(t, f.captor.SentMessages["D1"], 1) {
		assert.Contains(t, standupscot.PromptMessages, f.captor.SentMessages["D1"][0])
	}
	assert.Empty(t, f.captor.SentMessages["D2"])
	assert.Empty(t, f.captor.SentMessages["D3"])

	// Everyone is late the next day, including a user who opted back in
	require.NoError(t, f.service.Subscribe(ctx, "U3"))

	sent, err = f.service.RemindLateSubmitters(ctx, "2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	if assert.Len(t, f.captor.SentMessages["D3"], 1) {
		assert.Contains(t, standupscot.ReminderMessages, f.captor.SentMessages["D3"][0])
	}
}

func TestPromptLateSubmittersAttemptsEveryoneDespiteFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.captor.FailingChannels["D1"] = true

	_, err := f.service.RefreshMembership(ctx)
	require.NoError(t, err)

	sent, err := f.service.PromptLateSubmitters(ctx, "2024-01-02", "hello")
	assert.Equal(t, 2, sent)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "failed to prompt [U1]")
	}

	assert.Equal(t, []string{"hello"}, f.captor.SentMessages["D2"])
	assert.Equal(t, []string{"hello"}, f.captor.SentMessages["D3"])
}

func TestPromptLateSubmittersWithoutDirectChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.storer.AddMember(ctx, "U9"))

	sent, err := f.service.PromptLateSubmitters(ctx, "2024-01-02", "hello")
	assert.Equal(t, 0, sent)
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrNotFound))
	}
}

func TestPromptLateSubmittersSendsNothingWhenResolvingFails(t *testing.T) {
	ms := &mocks.Storer{}
	ms.On("ListMembers", mock.Anything).Return([]standup.Member{{Username: "U1"}}, nil)
	ms.On("ListUnsubscribed", mock.Anything).Return(nil, fmt.Errorf("connection reset"))
	ms.On("FindUsersSubmittedByDate", mock.Anything, "2024-01-02").Return([]string{}, nil)

	captor := newCaptor()
	s := newService(t, captor, ms)

	sent, err := s.PromptLateSubmitters(context.Background(), "2024-01-02", "hello")
	assert.Equal(t, 0, sent)
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrStoreUnavailable))
	}

	assert.Empty(t, captor.SentMessages)
}

func TestPostDigestGroupsByTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := []standup.Record{
		{Username: "U3", Team: "web", DatePosted: "2024-01-02", Today: "c"},
		{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "a"},
		{Username: "U2", Team: "core", DatePosted: "2024-01-02", Today: "b", Previous: strPtr("z")},
	}
	for _, r := range records {
		require.NoError(t, f.service.SaveStandup(ctx, r))
	}

	require.NoError(t, f.service.PostDigest(ctx, "2024-01-02"))

	if assert.Len(t, f.captor.PostedMessages, 1) {
		posted := f.captor.PostedMessages[0]
		assert.Equal(t, "C1", posted.ChannelID)
		assert.Equal(t, formatter.DigestHeadline("2024-01-02"), posted.Text)

		titles := make([]string, 0)
		for _, b := range posted.Blocks {
			titles = append(titles, b.Title)
		}
		assert.Equal(t, []string{"<@U1>", "<@U2>", "<@U3>"}, titles)
		assert.True(t, posted.Blocks[0].GroupHeader)
		assert.False(t, posted.Blocks[1].GroupHeader)
		assert.True(t, posted.Blocks[2].GroupHeader)
	}
}

func TestPostDigestWithoutStandups(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.service.PostDigest(context.Background(), "2024-01-02"))

	if assert.Len(t, f.captor.PostedMessages, 1) {
		assert.Equal(t, formatter.NoContentHeadline("2024-01-02"), f.captor.PostedMessages[0].Text)
		assert.Nil(t, f.captor.PostedMessages[0].Blocks)
	}
}

func TestPostDigestWithoutChannel(t *testing.T) {
	f := newFixture(t)
	f.captor.JoinedChannels = []chat.Channel{{ID: "C0", Name: "random"}}

	err := f.service.PostDigest(context.Background(), "2024-01-02")
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrNotFound))
		assert.Contains(t, err.Error(), "this bot does not belong to any channel")
	}
}

func TestPostDigestWithInvalidDate(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.service.PostDigest(context.Background(), "yesterday"))
	assert.Empty(t, f.captor.PostedMessages)
}

func TestHistoryWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, date := range []string{"2023-12-30", "2023-12-31", "2024-01-23", "2024-01-24", "2024-01-31"} {
		require.NoError(t, f.storer.Insert(ctx, standup.Record{Username: "U1", Team: "core", DatePosted: date, Today: date}))
	}

	testCases := []struct {
		days          int
		expectedDates []string
	}{
		{0, []string{"2024-01-24", "2024-01-31"}},
		{-3, []string{"2024-01-24", "2024-01-31"}},
		{8, []string{"2024-01-23", "2024-01-24", "2024-01-31"}},
		{100, []string{"2023-12-31", "2024-01-23", "2024-01-24", "2024-01-31"}},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d", tc.days), func(t *testing.T) {
			records, err := f.service.History(ctx, "U1", tc.days, "2024-01-31")
			require.NoError(t, err)

			dates := make([]string, 0)
			for _, r := range records {
				dates = append(dates, r.DatePosted)
			}
			assert.Equal(t, tc.expectedDates, dates)
		})
	}
}

func TestTodayStandup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.TodayStandup(ctx, "U1", "2024-01-02")
	assert.True(t, errors.Is(err, standup.ErrNotFound))

	require.NoError(t, f.service.SaveStandup(ctx, standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "a"}))

	rec, err := f.service.TodayStandup(ctx, "U1", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, "core", rec.Team)
}

func TestSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Unsubscribe(ctx, "U1"))
	unsubscribed, err := f.service.IsUnsubscribed(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, unsubscribed)

	require.NoError(t, f.service.Subscribe(ctx, "U1"))
	unsubscribed, err = f.service.IsUnsubscribed(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, unsubscribed)
}

func TestRefreshMembershipFailureKeepsMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RefreshMembership(ctx)
	require.NoError(t, err)

	f.captor.ListErr = standup.PlatformUnavailable("list", fmt.Errorf("ratelimited"))
	count, err := f.service.RefreshMembership(ctx)
	assert.Equal(t, 0, count)
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrPlatformUnavailable))
	}

	members, err := f.storer.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestOpenStandupDialogPrefillsExistingStandup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "a", Blockers: strPtr("b")}
	require.NoError(t, f.service.SaveStandup(ctx, rec))

	require.NoError(t, f.service.OpenStandupDialog(ctx, "trigger1", "U1", "2024-01-02"))
	require.NoError(t, f.service.OpenStandupDialog(ctx, "trigger2", "U2", "2024-01-02"))

	if assert.Len(t, f.captor.OpenedDialogs, 2) {
		assert.Equal(t, "trigger1", f.captor.OpenedDialogs[0].TriggerID)
		assert.Equal(t, standupscot.NewStandupDialog("2024-01-02", &rec), f.captor.OpenedDialogs[0].Dialog)
		assert.Equal(t, standupscot.NewStandupDialog("2024-01-02", nil), f.captor.OpenedDialogs[1].Dialog)
	}
}

func TestNewStandupDialog(t *testing.T) {
	d := standupscot.NewStandupDialog("2024-01-02", &standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "a", Previous: strPtr("p")})

	assert.Equal(t, standupscot.StandupDialogCallbackID, d.CallbackID)
	assert.Equal(t, "2024-01-02", d.State)
	if assert.Len(t, d.Elements, 4) {
		team := d.Elements[0].(*slack.TextInputElement)
		assert.Equal(t, standupscot.TeamElement, team.Name)
		assert.Equal(t, "core", team.Value)
		assert.False(t, team.Optional)

		previous := d.Elements[2].(*slack.TextInputElement)
		assert.Equal(t, standupscot.PreviousElement, previous.Name)
		assert.Equal(t, "p", previous.Value)
		assert.True(t, previous.Optional)

		blockers := d.Elements[3].(*slack.TextInputElement)
		assert.Equal(t, "", blockers.Value)
	}
}
