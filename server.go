package standupscot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// Message sources
const (
	directMessageSource = "directMessage"
	slashCommandSource  = "slashCommand"
)

// Max size of a slack request body
const maxBodyBytes = 1 << 20

// Header set by slack when it redelivers an event it didn't get a timely acknowledgement for
const retryNumHeader = "X-Slack-Retry-Num"

// Handler returns the http handler serving the health check and the slack endpoints
func (s *Standupscot) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthcheck)

	r.Route("/slack", func(r chi.Router) {
		r.Use(s.verifySlackSignature)

		r.Post("/events", s.handleEvents)
		r.Post("/commands", s.handleSlashCommand)
		r.Post("/interactions", s.handleInteraction)
	})

	return r
}

func healthcheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// verifySlackSignature rejects requests that aren't signed with the signing secret. Verification is
// skipped when no signing secret is configured
func (s *Standupscot) verifySlackSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.signingSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
		if err != nil {
			s.log.Debugf("Rejecting request to [%s]: %v", r.URL.Path, err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		if _, err = sv.Write(body); err != nil {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		if err = sv.Ensure(); err != nil {
			s.log.Printf("Rejecting request to [%s] with invalid signature: %v", r.URL.Path, err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// handleEvents handles the events api url verification and direct messages sent to the bot. Events are acknowledged
// right away and direct messages are processed in the background. Redelivered events are acknowledged and dropped
func (s *Standupscot) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		s.log.Debugf("Invalid event: %v", err)
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err = json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "invalid challenge", http.StatusBadRequest)
			return
		}

		render.PlainText(w, r, challenge.Challenge)

	case slackevents.CallbackEvent:
		w.WriteHeader(http.StatusOK)

		if retryNum := r.Header.Get(retryNumHeader); retryNum != "" {
			s.log.Debugf("Ignoring redelivered event (retry [%s], reason [%s])", retryNum, r.Header.Get("X-Slack-Retry-Reason"))
			return
		}

		if msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			ctx := context.WithoutCancel(r.Context())

			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.handleDirectMessage(ctx, msg)
			}()
		}

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// handleDirectMessage answers a direct message sent to the bot. Messages from bots (including ours) and
// message edits or deletions are ignored
func (s *Standupscot) handleDirectMessage(ctx context.Context, msg *slackevents.MessageEvent) {
	if msg.ChannelType != "im" || msg.BotID != "" || msg.SubType != "" || msg.User == "" {
		return
	}

	m := s.newIncomingMessage(msg.User, msg.Channel, msg.Text, "")
	s.log.Debugf("Processing direct message from [%s]: [%s]", m.User, m.NormalizedText)

	answer := s.routeMessage(ctx, directMessageSource, m)
	if answer == nil {
		return
	}

	if err := s.service.notifier.Reply(ctx, msg.Channel, answer.Text); err != nil {
		s.log.Printf("Failed to answer direct message from [%s]: %v", m.User, err)
	}
}

// handleSlashCommand opens the standup dialog when the command has no text or answers the command otherwise
func (s *Standupscot) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "invalid slash command", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	m := s.newIncomingMessage(cmd.UserID, cmd.ChannelID, cmd.Text, cmd.TriggerID)

	if m.NormalizedText == "" {
		if err = s.service.OpenStandupDialog(ctx, cmd.TriggerID, cmd.UserID, m.Today); err != nil {
			s.log.Printf("Failed to open standup dialog for [%s]: %v", cmd.UserID, err)
			render.JSON(w, r, slack.Msg{ResponseType: ephemeralResponse, Text: ":warning: Sorry, I couldn't open the standup dialog. Please try again in a moment."})
			return
		}

		w.WriteHeader(http.StatusOK)
		return
	}

	answer := s.routeMessage(ctx, slashCommandSource, m)
	sendOpts := ApplyAnswerOpts(answer.Options...)

	render.JSON(w, r, slack.Msg{ResponseType: sendOpts[ResponseTypeOpt], Text: answer.Text})
}

// handleInteraction saves submitted standup dialogs. Invalid submissions are answered with the dialog
// validation errors for slack to display
func (s *Standupscot) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.PostFormValue("payload")), &callback); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if callback.Type != slack.InteractionTypeDialogSubmission || callback.CallbackID != StandupDialogCallbackID {
		s.log.Debugf("Ignoring interaction [%s] with callback id [%s]", callback.Type, callback.CallbackID)
		w.WriteHeader(http.StatusOK)
		return
	}

	submission := newStandupSubmission(callback.Submission)
	if validationErrs := submission.validate(); len(validationErrs) > 0 {
		render.JSON(w, r, slack.DialogInputValidationErrors{Errors: validationErrs})
		return
	}

	date := callback.State
	if date == "" {
		date = s.Today()
	}

	if err := s.service.SaveStandup(r.Context(), submission.record(callback.User.ID, date)); err != nil {
		s.log.Printf("Failed to save standup of [%s] for [%s]: %v", callback.User.ID, date, err)
		http.Error(w, "failed to save standup", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
