package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/slack-go/slack"
)

// PostedMessage is a message posted to a channel
type PostedMessage struct {
	ChannelID string
	Text      string
	Blocks    []formatter.MessageBlock
}

// OpenedDialog is a dialog opened for a trigger id
type OpenedDialog struct {
	TriggerID string
	Dialog    slack.Dialog
}

// ChatCaptor implements chat.Client. It serves the direct message and joined channels it's set up with and
// captures every message and dialog for post-execution validation
type ChatCaptor struct {
	sync.Mutex

	DirectMessageChannels []chat.DirectMessageChannel
	JoinedChannels        []chat.Channel

	// ChannelMembers holds the members of each channel, by channel id
	ChannelMembers map[string][]string

	// FailingChannels holds the channel ids for which sending or posting fails
	FailingChannels map[string]bool

	// ListErr, when set, is returned by all list calls
	ListErr error

	SentMessages   map[string][]string
	PostedMessages []PostedMessage
	OpenedDialogs  []OpenedDialog

	// Calls counts the calls made to each method of the client
	Calls map[string]int
}

// NewChatCaptor returns a new initialized ChatCaptor instance
func NewChatCaptor(dmChannels []chat.DirectMessageChannel, joinedChannels []chat.Channel) (cc *ChatCaptor) {
	cc = new(ChatCaptor)
	cc.DirectMessageChannels = dmChannels
	cc.JoinedChannels = joinedChannels
	cc.ChannelMembers = make(map[string][]string)
	cc.FailingChannels = make(map[string]bool)
	cc.Calls = make(map[string]int)
	cc.SentMessages = make(map[string][]string)
	cc.PostedMessages = make([]PostedMessage, 0)
	cc.OpenedDialogs = make([]OpenedDialog, 0)

	return cc
}

// ListDirectMessageChannels returns the captor's direct message channels
func (cc *ChatCaptor) ListDirectMessageChannels(ctx context.Context) (channels []chat.DirectMessageChannel, err error) {
	cc.Lock()
	defer cc.Unlock()

	cc.Calls["ListDirectMessageChannels"]++
	if cc.ListErr != nil {
		return nil, cc.ListErr
	}

	return append([]chat.DirectMessageChannel{}, cc.DirectMessageChannels...), nil
}

// ListJoinedChannels returns the captor's joined channels
func (cc *ChatCaptor) ListJoinedChannels(ctx context.Context) (channels []chat.Channel, err error) {
	cc.Lock()
	defer cc.Unlock()

	cc.Calls["ListJoinedChannels"]++
	if cc.ListErr != nil {
		return nil, cc.ListErr
	}

	return append([]chat.Channel{}, cc.JoinedChannels...), nil
}

// ListChannelMembers returns the captor's members of channelID
func (cc *ChatCaptor) ListChannelMembers(ctx context.Context, channelID string) (members []string, err error) {
	cc.Lock()
	defer cc.Unlock()

	cc.Calls["ListChannelMembers"]++
	if cc.ListErr != nil {
		return nil, cc.ListErr
	}

	return append([]string{}, cc.ChannelMembers[channelID]...), nil
}

// SendDirectMessage captures text sent to channelID
func (cc *ChatCaptor) SendDirectMessage(ctx context.Context, channelID string, text string) (err error) {
	cc.Lock()
	defer cc.Unlock()

	cc.Calls["SendDirectMessage"]++
	if cc.FailingChannels[channelID] {
		return standup.PlatformUnavailable("capture.SendDirectMessage", fmt.Errorf("channel_not_found [%s]", channelID))
	}

	cc.SentMessages[channelID] = append(cc.SentMessages[channelID], text)
	return nil
}

// PostMessage captures a message posted to channelID
func (cc *ChatCaptor) PostMessage(ctx context.Context, channelID string, text string, blocks []formatter.MessageBlock) (err error) {
	cc.Lock()
	defer cc.Unlock()

	cc.Calls["PostMessage"]++
	if cc.FailingChannels[channelID] {
		return standup.PlatformUnavailable("capture.PostMessage", fmt.Errorf("channel_not_found [%s]", channelID))
	}

	cc.PostedMessages = append(cc.PostedMessages, PostedMessage{ChannelID: channelID, Text: text, Blocks: blocks})
	return nil
}

// OpenDialog captures a dialog opened for triggerID
func (cc *ChatCaptor) OpenDialog(ctx context.Context, triggerID string, dialog slack.Dialog) (err error) {
	cc.Lock()
	defer cc.Unlock()

	cc.Calls["OpenDialog"]++
	cc.OpenedDialogs = append(cc.OpenedDialogs, OpenedDialog{TriggerID: triggerID, Dialog: dialog})
	return nil
}

// SentTo returns a copy of the messages sent to channelID
func (cc *ChatCaptor) SentTo(channelID string) (messages []string) {
	cc.Lock()
	defer cc.Unlock()

	return append([]string{}, cc.SentMessages[channelID]...)
}

// CallCount returns the number of calls made to method
func (cc *ChatCaptor) CallCount(method string) int {
	cc.Lock()
	defer cc.Unlock()

	return cc.Calls[method]
}
