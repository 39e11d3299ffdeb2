package standupscot_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/commands"
	"github.com/alexandre-normand/standupscot/config"
	"github.com/alexandre-normand/standupscot/dispatch"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
}

func newBot(t *testing.T, f *fixture, secret string) (s *standupscot.Standupscot) {
	t.Helper()

	v := config.NewViperWithDefaults()
	v.Set(config.TimeLocationKey, "UTC")
	v.Set(config.SigningSecretKey, secret)

	sb := standupscot.NewBot("standupscot", v, f.service, standupscot.OptionNowFunc(fixedNow))
	for _, c := range commands.New(f.service) {
		sb.WithCommand(c)
	}

	s, err := sb.Build()
	require.NoError(t, err)

	return s
}

func serve(s *standupscot.Standupscot, r *http.Request) (rr *httptest.ResponseRecorder) {
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, r)

	return rr
}

func formRequest(path string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return r
}

func slashCommand(user string, text string) url.Values {
	return url.Values{
		"command":    {"/standup"},
		"user_id":    {user},
		"channel_id": {"D1"},
		"text":       {text},
		"trigger_id": {"trigger1"},
	}
}

func sign(r *http.Request, body string, secret string, ts time.Time) {
	timestamp := fmt.Sprintf("%d", ts.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":" + body))

	r.Header.Set("X-Slack-Request-Timestamp", timestamp)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

func decodeMsg(t *testing.T, rr *httptest.ResponseRecorder) (msg slack.Msg) {
	t.Helper()

	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))

	return msg
}

func TestHealth(t *testing.T) {
	s := newBot(t, newFixture(t), "")

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestURLVerification(t *testing.T) {
	s := newBot(t, newFixture(t), "")

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(`{"token":"t","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", rr.Body.String())
}

func TestInvalidEventIsRejected(t *testing.T) {
	s := newBot(t, newFixture(t), "")

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(`not json`)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnsignedRequestIsRejected(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, signingSecret)

	rr := serve(s, formRequest("/slack/commands", slashCommand("U1", "")))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, f.captor.OpenedDialogs)
}

func TestRequestSignedWithWrongSecretIsRejected(t *testing.T) {
	s := newBot(t, newFixture(t), signingSecret)

	body := slashCommand("U1", "help").Encode()
	r := formRequest("/slack/commands", slashCommand("U1", "help"))
	sign(r, body, "not-the-secret", time.Now())

	rr := serve(s, r)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignedSlashCommandHelp(t *testing.T) {
	s := newBot(t, newFixture(t), signingSecret)

	body := slashCommand("U1", "help").Encode()
	r := formRequest("/slack/commands", slashCommand("U1", "help"))
	sign(r, body, signingSecret, time.Now())

	msg := decodeMsg(t, serve(s, r))

	assert.Equal(t, "ephemeral", msg.ResponseType)
	assert.Contains(t, msg.Text, "🤝 Hi, <@U1>! I'm `standupscot`")
	assert.Contains(t, msg.Text, "\t• `history [days]` - ")
	assert.Contains(t, msg.Text, "\t• `help` - Reply with usage instructions\n")
}

func TestSlashCommandWithoutTextOpensDialog(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	rr := serve(s, formRequest("/slack/commands", slashCommand("U1", "  ")))

	assert.Equal(t, http.StatusOK, rr.Code)
	if assert.Len(t, f.captor.OpenedDialogs, 1) {
		assert.Equal(t, "trigger1", f.captor.OpenedDialogs[0].TriggerID)
		assert.Equal(t, "2024-01-02", f.captor.OpenedDialogs[0].Dialog.State)
	}
}

func TestSlashCommandStatus(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	msg := decodeMsg(t, serve(s, formRequest("/slack/commands", slashCommand("U1", "status"))))
	assert.Equal(t, "You haven't posted your standup for Jan 2nd 2024 yet. Type `/standup` to submit it.", msg.Text)

	require.NoError(t, f.service.SaveStandup(context.Background(), standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "tests"}))

	msg = decodeMsg(t, serve(s, formRequest("/slack/commands", slashCommand("U1", "status"))))
	assert.Equal(t, "*Jan 2nd 2024* (team `core`)\n\t• *Today*: tests\n", msg.Text)
}

func TestSlashCommandDefaultAnswer(t *testing.T) {
	s := newBot(t, newFixture(t), "")

	msg := decodeMsg(t, serve(s, formRequest("/slack/commands", slashCommand("U1", "dance"))))

	assert.Equal(t, "ephemeral", msg.ResponseType)
	assert.Equal(t, "I don't understand, ask me for `help` to get a list of things I do", msg.Text)
}

func interaction(t *testing.T, payload map[string]interface{}) *http.Request {
	t.Helper()

	b, err := json.Marshal(payload)
	require.NoError(t, err)

	return formRequest("/slack/interactions", url.Values{"payload": {string(b)}})
}

func TestDialogSubmissionIsSaved(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	rr := serve(s, interaction(t, map[string]interface{}{
		"type":        "dialog_submission",
		"callback_id": standupscot.StandupDialogCallbackID,
		"user":        map[string]string{"id": "U1"},
		"submission": map[string]string{
			standupscot.TeamElement:     " core ",
			standupscot.TodayElement:    "write the digest",
			standupscot.PreviousElement: "",
			standupscot.BlockersElement: "flaky ci",
		},
	}))

	assert.Equal(t, http.StatusOK, rr.Code)

	rec, err := f.storer.FindByUserAndDate(context.Background(), "U1", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, standup.Record{Username: "U1", Team: "core", DatePosted: "2024-01-02", Today: "write the digest", Blockers: strPtr("flaky ci")}, *rec)
}

func TestInvalidDialogSubmissionReturnsValidationErrors(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	rr := serve(s, interaction(t, map[string]interface{}{
		"type":        "dialog_submission",
		"callback_id": standupscot.StandupDialogCallbackID,
		"user":        map[string]string{"id": "U1"},
		"submission": map[string]string{
			standupscot.TeamElement:  strings.Repeat("x", 65),
			standupscot.TodayElement: "   ",
		},
	}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"errors":[
		{"name":"team","error":"This field can't be longer than 64 characters"},
		{"name":"standup_today","error":"This field is required"}]}`, rr.Body.String())

	records, err := f.storer.FindByDate(context.Background(), "2024-01-02")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOtherInteractionsAreIgnored(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	rr := serve(s, interaction(t, map[string]interface{}{
		"type":        "dialog_submission",
		"callback_id": "something_else",
		"user":        map[string]string{"id": "U1"},
		"submission":  map[string]string{standupscot.TeamElement: "core", standupscot.TodayElement: "a"},
	}))

	assert.Equal(t, http.StatusOK, rr.Code)

	records, err := f.storer.FindByDate(context.Background(), "2024-01-02")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInvalidInteractionPayload(t *testing.T) {
	s := newBot(t, newFixture(t), "")

	rr := serve(s, formRequest("/slack/interactions", url.Values{"payload": {"{"}}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func messageEvent(event map[string]string) *http.Request {
	b, _ := json.Marshal(map[string]interface{}{
		"token":      "t",
		"team_id":    "T1",
		"api_app_id": "A1",
		"type":       "event_callback",
		"event_id":   "Ev1",
		"event_time": 1704189600,
		"event":      event,
	})

	return httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(string(b)))
}

func TestDirectMessageIsAnswered(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	rr := serve(s, messageEvent(map[string]string{"type": "message", "channel": "D1", "user": "U1", "text": "unsubscribe", "ts": "1704189600.000100", "channel_type": "im"}))
	assert.Equal(t, http.StatusOK, rr.Code)

	// Close waits for the message to be processed
	require.NoError(t, s.Close())

	if assert.Len(t, f.captor.SentTo("D1"), 1) {
		assert.Contains(t, f.captor.SentTo("D1")[0], "You're unsubscribed")
	}

	unsubscribed, err := f.service.IsUnsubscribed(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, unsubscribed)
}

func TestDirectMessageIsAnsweredInItsChannel(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	rr := serve(s, messageEvent(map[string]string{"type": "message", "channel": "D42", "user": "U1", "text": "help", "ts": "1.1", "channel_type": "im"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, s.Close())

	assert.Len(t, f.captor.SentTo("D42"), 1)
	assert.Empty(t, f.captor.SentTo("D1"))
	assert.Equal(t, 0, f.captor.CallCount("ListDirectMessageChannels"))
}

func TestRedeliveredEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	s := newBot(t, f, "")

	r := messageEvent(map[string]string{"type": "message", "channel": "D1", "user": "U1", "text": "unsubscribe", "ts": "1.1", "channel_type": "im"})
	r.Header.Set("X-Slack-Retry-Num", "1")
	r.Header.Set("X-Slack-Retry-Reason", "http_timeout")

	rr := serve(s, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, s.Close())

	assert.Empty(t, f.captor.SentTo("D1"))

	unsubscribed, err := f.service.IsUnsubscribed(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, unsubscribed)
}

func TestDirectMessagesAreAcknowledgedWhileSweepIsThrottled(t *testing.T) {
	f := newFixture(t)

	// A dispatcher whose rate limit is already drained by a sweep
	dispatcher := newDispatcher(t, f.captor, dispatch.OptionRateLimit(0.001, 1))
	f.service = newServiceWithDispatcher(t, f.captor, f.storer, dispatcher)
	require.NoError(t, dispatcher.SendToUser(context.Background(), "U2", "Standup time!"))

	s := newBot(t, f, "")

	start := time.Now()
	for i := 0; i < 4; i++ {
		rr := serve(s, messageEvent(map[string]string{"type": "message", "channel": "D1", "user": "U1", "text": "status", "ts": fmt.Sprintf("1.%d", i), "channel_type": "im"}))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, s.Close())
	assert.Len(t, f.captor.SentTo("D1"), 4)
}

func TestIgnoredMessages(t *testing.T) {
	testCases := map[string]map[string]string{
		"channelMessage": {"type": "message", "channel": "C1", "user": "U1", "text": "help", "ts": "1.1", "channel_type": "channel"},
		"botMessage":     {"type": "message", "channel": "D1", "user": "U1", "bot_id": "B1", "text": "help", "ts": "1.1", "channel_type": "im"},
		"edit":           {"type": "message", "subtype": "message_changed", "channel": "D1", "text": "help", "ts": "1.1", "channel_type": "im"},
	}

	for name, event := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			s := newBot(t, f, "")

			rr := serve(s, messageEvent(event))

			assert.Equal(t, http.StatusOK, rr.Code)
			require.NoError(t, s.Close())
			assert.Empty(t, f.captor.SentMessages)
		})
	}
}
