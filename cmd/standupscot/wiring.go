package main

import (
	"github.com/alexandre-normand/standupscot"
	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/commands"
	"github.com/alexandre-normand/standupscot/config"
	"github.com/alexandre-normand/standupscot/dispatch"
	"github.com/alexandre-normand/standupscot/membership"
	"github.com/alexandre-normand/standupscot/store"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// wire assembles the standup service and the bot serving it from a storer and a chat client. The storer is
// closed when the bot is
func wire(v *viper.Viper, logger *zap.Logger, storer store.Storer, client chat.Client) (bot *standupscot.Standupscot, service *standupscot.Service, err error) {
	finder, err := chat.NewCachingDirectChannelFinder(client, v.GetInt(config.DMChannelCacheSizeKey))
	if err != nil {
		return nil, nil, err
	}

	channelID := v.GetString(config.ChannelIDKey)
	dispatcher := dispatch.New(client, finder,
		dispatch.OptionChannelID(channelID),
		dispatch.OptionRateLimit(v.GetFloat64(config.MessagesPerSecondKey), v.GetInt(config.MessageBurstKey)))

	service, err = standupscot.NewService(storer, dispatcher, membership.New(client, storer, channelID), client,
		standupscot.OptionServiceName(name),
		standupscot.OptionServiceLog(logger, v.GetBool(config.DebugKey)),
		standupscot.OptionPostIndividualStandups(v.GetBool(config.PostIndividualStandupsKey)))
	if err != nil {
		return nil, nil, err
	}

	scheduledActions, err := commands.NewScheduledActions(service, v)
	if err != nil {
		return nil, nil, err
	}

	sb := standupscot.NewBot(name, v, service, standupscot.OptionLog(logger)).
		WithCloser(storer)

	for _, c := range commands.New(service) {
		sb.WithCommand(c)
	}

	for _, sa := range scheduledActions {
		sb.WithScheduledAction(sa)
	}

	bot, err = sb.Build()
	if err != nil {
		return nil, nil, err
	}

	return bot, service, nil
}
