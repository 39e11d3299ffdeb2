package chat

import (
	"context"
	"fmt"

	"github.com/alexandre-normand/standupscot/standup"
	lru "github.com/hashicorp/golang-lru"
)

// DirectChannelFinder defines the interface for finding the direct message channel opened with a user
type DirectChannelFinder interface {
	FindDirectChannel(ctx context.Context, userID string) (channelID string, err error)
}

// DirectMessageChannelLister is implemented by any value that lists the bot's direct message channels
type DirectMessageChannelLister interface {
	ListDirectMessageChannels(ctx context.Context) (channels []DirectMessageChannel, err error)
}

// cachingDirectChannelFinder holds a cache and a DirectMessageChannelLister to find direct message channels, loading
// them from slack when not in cache
type cachingDirectChannelFinder struct {
	loader       DirectMessageChannelLister
	channelCache *lru.ARCCache
}

// NewCachingDirectChannelFinder creates a new DirectChannelFinder with caching if cacheSize is greater than 0. It requires
// an implementation of the lister that will do the actual loading when not in cache
func NewCachingDirectChannelFinder(loader DirectMessageChannelLister, cacheSize int) (f DirectChannelFinder, err error) {
	cf := new(cachingDirectChannelFinder)
	cf.loader = loader

	if cacheSize > 0 {
		cf.channelCache, err = lru.NewARC(cacheSize)
		if err != nil {
			return nil, err
		}
	}

	return cf, nil
}

// FindDirectChannel returns the id of the direct message channel opened with userID or an ErrNotFound error
// if there's none (i.e. userID is the bot itself or the user never opened the app)
func (c *cachingDirectChannelFinder) FindDirectChannel(ctx context.Context, userID string) (channelID string, err error) {
	if c.channelCache != nil {
		if cached, exists := c.channelCache.Get(userID); exists {
			channelID, ok := cached.(string)
			if !ok {
				return "", fmt.Errorf("error converting cached value for user id [%s]", userID)
			}

			return channelID, nil
		}
	}

	channels, err := c.loader.ListDirectMessageChannels(ctx)
	if err != nil {
		return "", err
	}

	for _, ch := range channels {
		// Keep all of them since we paid for the full listing anyway
		if c.channelCache != nil {
			c.channelCache.Add(ch.User, ch.ChannelID)
		}

		if ch.User == userID {
			channelID = ch.ChannelID
		}
	}

	if channelID == "" {
		return "", standup.NotFound("chat.FindDirectChannel", "no direct message channel for user [%s]", userID)
	}

	return channelID, nil
}
