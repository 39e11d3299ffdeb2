// Package dispatch sends notifications to users and to the standup channel through a chat.Client,
// throttling outgoing messages to stay within the chat platform's rate limits
package dispatch

import (
	"context"
	"sync"

	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/alexandre-normand/standupscot/standup"
	"golang.org/x/time/rate"
)

// Slack allows about one message per second per channel
const (
	DefaultMessagesPerSecond = 1
	DefaultBurst             = 3
)

// Dispatcher sends messages to users and to the monitored channel
type Dispatcher struct {
	client    chat.Client
	finder    chat.DirectChannelFinder
	channelID string
	limiter   *rate.Limiter

	// resolvedChannelID caches the monitored channel found when channelID isn't configured
	resolvedMutex     sync.Mutex
	resolvedChannelID string
}

// Option defines an option for a Dispatcher
type Option func(d *Dispatcher)

// OptionChannelID sets the id of the monitored channel. When not set, messages are posted to the first
// channel the bot is a member of, as found on the first post
func OptionChannelID(channelID string) Option {
	return func(d *Dispatcher) {
		d.channelID = channelID
	}
}

// OptionRateLimit sets the rate at which messages are sent along with the burst size
func OptionRateLimit(messagesPerSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		d.limiter = rate.NewLimiter(rate.Limit(messagesPerSecond), burst)
	}
}

// New returns a new Dispatcher sending messages through client and finding direct message channels with finder
func New(client chat.Client, finder chat.DirectChannelFinder, opts ...Option) (d *Dispatcher) {
	d = &Dispatcher{
		client:  client,
		finder:  finder,
		limiter: rate.NewLimiter(rate.Limit(DefaultMessagesPerSecond), DefaultBurst),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SendToUser sends text to the user in their direct message channel with the bot. An ErrNotFound error is
// returned if the user never opened a conversation with the bot
func (d *Dispatcher) SendToUser(ctx context.Context, userID string, text string) (err error) {
	channelID, err := d.finder.FindDirectChannel(ctx, userID)
	if err != nil {
		return err
	}

	if err = d.limiter.Wait(ctx); err != nil {
		return err
	}

	return d.client.SendDirectMessage(ctx, channelID, text)
}

// Reply sends text to a direct message channel already known from an incoming message. Replies don't wait on
// the rate limiter shared by SendToUser and PostToChannel since they go to the conversation the user just wrote in
func (d *Dispatcher) Reply(ctx context.Context, channelID string, text string) (err error) {
	return d.client.SendDirectMessage(ctx, channelID, text)
}

// PostToChannel posts text and blocks to the monitored channel. An ErrNotFound error is returned if the
// bot doesn't belong to any channel
func (d *Dispatcher) PostToChannel(ctx context.Context, text string, blocks []formatter.MessageBlock) (err error) {
	channelID, err := d.monitoredChannelID(ctx)
	if err != nil {
		return err
	}

	if err = d.limiter.Wait(ctx); err != nil {
		return err
	}

	return d.client.PostMessage(ctx, channelID, text, blocks)
}

// monitoredChannelID returns the configured channel id or, when not configured, the id of the first channel the
// bot is a member of. The lookup is done once and cached after it succeeds
func (d *Dispatcher) monitoredChannelID(ctx context.Context) (channelID string, err error) {
	if d.channelID != "" {
		return d.channelID, nil
	}

	d.resolvedMutex.Lock()
	defer d.resolvedMutex.Unlock()

	if d.resolvedChannelID != "" {
		return d.resolvedChannelID, nil
	}

	channel, found, err := chat.FindMonitoredChannel(ctx, d.client, "")
	if err != nil {
		return "", err
	}

	if !found {
		return "", standup.NotFound("dispatch.PostToChannel", "this bot does not belong to any channel, invite it to at least one and try again")
	}

	d.resolvedChannelID = channel.ID
	return d.resolvedChannelID, nil
}
