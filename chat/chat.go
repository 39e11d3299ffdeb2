// Package chat implements the chat platform client used by standupscot on top of the slack web api
package chat

import (
	"context"

	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/slack-go/slack"
)

// Page size for paginated slack calls
const pageSize = 200

// DirectMessageChannel is a direct message conversation between the bot and a user
type DirectMessageChannel struct {
	User      string
	ChannelID string
}

// Channel is a channel visible to the bot
type Channel struct {
	ID       string
	Name     string
	IsMember bool
}

// Client is implemented by any value that talks to the chat platform on behalf of the bot. All errors
// are standup.ErrPlatformUnavailable errors
type Client interface {
	// ListDirectMessageChannels returns all direct message channels opened with the bot
	ListDirectMessageChannels(ctx context.Context) (channels []DirectMessageChannel, err error)

	// ListJoinedChannels returns all non-archived channels
	ListJoinedChannels(ctx context.Context) (channels []Channel, err error)

	// ListChannelMembers returns the user ids of the members of a channel
	ListChannelMembers(ctx context.Context, channelID string) (members []string, err error)

	// SendDirectMessage sends text to a direct message channel
	SendDirectMessage(ctx context.Context, channelID string, text string) (err error)

	// PostMessage posts text along with blocks to a channel
	PostMessage(ctx context.Context, channelID string, text string, blocks []formatter.MessageBlock) (err error)

	// OpenDialog opens a dialog in response to the interaction identified by triggerID
	OpenDialog(ctx context.Context, triggerID string, dialog slack.Dialog) (err error)
}

// SlackClient implements Client with a slack api client
type SlackClient struct {
	api *slack.Client
}

// NewSlackClient returns a new SlackClient for the bot token and slack options (i.e. slack.OptionAPIURL)
func NewSlackClient(token string, options ...slack.Option) (sc *SlackClient) {
	return &SlackClient{api: slack.New(token, options...)}
}

// ListDirectMessageChannels returns all direct message channels opened with the bot
func (sc *SlackClient) ListDirectMessageChannels(ctx context.Context) (channels []DirectMessageChannel, err error) {
	conversations, err := sc.listConversations(ctx, "im")
	if err != nil {
		return nil, standup.PlatformUnavailable("chat.ListDirectMessageChannels", err)
	}

	channels = make([]DirectMessageChannel, 0, len(conversations))
	for _, c := range conversations {
		channels = append(channels, DirectMessageChannel{User: c.User, ChannelID: c.ID})
	}

	return channels, nil
}

// ListJoinedChannels returns all non-archived public and private channels. Members aren't loaded, use
// ListChannelMembers for the channel of interest
func (sc *SlackClient) ListJoinedChannels(ctx context.Context) (channels []Channel, err error) {
	conversations, err := sc.listConversations(ctx, "public_channel", "private_channel")
	if err != nil {
		return nil, standup.PlatformUnavailable("chat.ListJoinedChannels", err)
	}

	channels = make([]Channel, 0, len(conversations))
	for _, c := range conversations {
		channels = append(channels, Channel{ID: c.ID, Name: c.Name, IsMember: c.IsMember})
	}

	return channels, nil
}

// ListChannelMembers returns the user ids of the members of the channel identified by channelID
func (sc *SlackClient) ListChannelMembers(ctx context.Context, channelID string) (members []string, err error) {
	if members, err = sc.listMembers(ctx, channelID); err != nil {
		return nil, standup.PlatformUnavailable("chat.ListChannelMembers", err)
	}

	return members, nil
}

// SendDirectMessage sends text to a direct message channel
func (sc *SlackClient) SendDirectMessage(ctx context.Context, channelID string, text string) (err error) {
	if _, _, err = sc.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return standup.PlatformUnavailable("chat.SendDirectMessage", err)
	}

	return nil
}

// PostMessage posts text along with blocks rendered as message attachments
func (sc *SlackClient) PostMessage(ctx context.Context, channelID string, text string, blocks []formatter.MessageBlock) (err error) {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		options = append(options, slack.MsgOptionAttachments(Attachments(blocks)...))
	}

	if _, _, err = sc.api.PostMessageContext(ctx, channelID, options...); err != nil {
		return standup.PlatformUnavailable("chat.PostMessage", err)
	}

	return nil
}

// OpenDialog opens a dialog in response to the interaction identified by triggerID
func (sc *SlackClient) OpenDialog(ctx context.Context, triggerID string, dialog slack.Dialog) (err error) {
	if err = sc.api.OpenDialogContext(ctx, triggerID, dialog); err != nil {
		return standup.PlatformUnavailable("chat.OpenDialog", err)
	}

	return nil
}

func (sc *SlackClient) listConversations(ctx context.Context, types ...string) (conversations []slack.Channel, err error) {
	params := &slack.GetConversationsParameters{Types: types, ExcludeArchived: true, Limit: pageSize}

	for {
		page, cursor, err := sc.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, err
		}

		conversations = append(conversations, page...)
		if cursor == "" {
			return conversations, nil
		}

		params.Cursor = cursor
	}
}

func (sc *SlackClient) listMembers(ctx context.Context, channelID string) (members []string, err error) {
	params := &slack.GetUsersInConversationParameters{ChannelID: channelID, Limit: pageSize}

	members = make([]string, 0)
	for {
		page, cursor, err := sc.api.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, err
		}

		members = append(members, page...)
		if cursor == "" {
			return members, nil
		}

		params.Cursor = cursor
	}
}

// Attachments converts message blocks to slack message attachments
func Attachments(blocks []formatter.MessageBlock) (attachments []slack.Attachment) {
	attachments = make([]slack.Attachment, 0, len(blocks))

	for _, b := range blocks {
		fields := make([]slack.AttachmentField, 0, len(b.Fields))
		for _, f := range b.Fields {
			fields = append(fields, slack.AttachmentField{Title: f.Title, Value: f.Value, Short: f.Short})
		}

		attachments = append(attachments, slack.Attachment{
			Color:    b.Color,
			Title:    b.Title,
			Pretext:  b.Pretext,
			Fallback: b.Fallback,
			Footer:   b.Footer,
			Fields:   fields,
		})
	}

	return attachments
}

// JoinedChannelLister is implemented by any value that lists the channels visible to the bot
type JoinedChannelLister interface {
	ListJoinedChannels(ctx context.Context) (channels []Channel, err error)
}

// RosterLister is implemented by any value that lists the channels visible to the bot and the members of one of them
type RosterLister interface {
	JoinedChannelLister

	ListChannelMembers(ctx context.Context, channelID string) (members []string, err error)
}

// FindMonitoredChannel returns the channel with id channelID or, if channelID is empty, the first channel the bot is
// a member of. found is false when channelID is empty and the bot isn't a member of any channel. A configured channel
// that the bot isn't a member of is a standup.ErrNotFound error
func FindMonitoredChannel(ctx context.Context, lister JoinedChannelLister, channelID string) (channel Channel, found bool, err error) {
	channels, err := lister.ListJoinedChannels(ctx)
	if err != nil {
		return Channel{}, false, err
	}

	for _, c := range channels {
		if channelID == "" && c.IsMember {
			return c, true, nil
		}

		if channelID != "" && c.ID == channelID {
			if !c.IsMember {
				return Channel{}, false, standup.NotFound("chat.FindMonitoredChannel", "this bot isn't a member of channel [%s], invite it and try again", channelID)
			}

			return c, true, nil
		}
	}

	if channelID != "" {
		return Channel{}, false, standup.NotFound("chat.FindMonitoredChannel", "channel [%s] isn't visible to this bot, invite it and try again", channelID)
	}

	return Channel{}, false, nil
}
