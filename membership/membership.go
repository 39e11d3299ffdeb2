// Package membership keeps the stored channel members in sync with the chat platform's roster
// of the monitored channel
package membership

import (
	"context"
	"errors"

	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/store"
)

// Refresher refreshes the stored channel members from the monitored channel's roster
type Refresher struct {
	lister    chat.RosterLister
	members   store.MembershipStorer
	channelID string
}

// New returns a new Refresher for the channel identified by channelID. If channelID is empty, the monitored
// channel is the first channel the bot is a member of
func New(lister chat.RosterLister, members store.MembershipStorer, channelID string) (r *Refresher) {
	return &Refresher{lister: lister, members: members, channelID: channelID}
}

// RefreshMembership fetches the roster of the monitored channel and stores it in place of the current members. The
// roster is fetched before touching the store so a platform failure leaves stored members untouched. When the
// store is a store.MembershipReplacer, the roster is swapped in as a single snapshot. Otherwise, members are cleared
// (if there's any) and added one by one. If no channel is configured and the bot isn't a member of any channel, the
// roster is empty. A configured channel the bot isn't a member of is a standup.ErrNotFound error and leaves the
// store untouched. The returned count is the number of distinct members stored
func (r *Refresher) RefreshMembership(ctx context.Context) (count int, err error) {
	usernames, err := r.fetchRoster(ctx)
	if err != nil {
		return 0, err
	}

	if replacer, ok := r.members.(store.MembershipReplacer); ok {
		if err = replacer.ReplaceMembers(ctx, usernames); err != nil {
			return 0, err
		}

		return len(usernames), nil
	}

	if err = r.clearAndAdd(ctx, usernames); err != nil {
		return 0, err
	}

	return len(usernames), nil
}

// fetchRoster returns the distinct members of the monitored channel, in roster order
func (r *Refresher) fetchRoster(ctx context.Context) (usernames []string, err error) {
	channel, found, err := chat.FindMonitoredChannel(ctx, r.lister, r.channelID)
	if err != nil {
		return nil, platformErr(err)
	}

	usernames = make([]string, 0)
	if !found {
		return usernames, nil
	}

	members, err := r.lister.ListChannelMembers(ctx, channel.ID)
	if err != nil {
		return nil, platformErr(err)
	}

	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if !seen[m] {
			seen[m] = true
			usernames = append(usernames, m)
		}
	}

	return usernames, nil
}

func platformErr(err error) error {
	if errors.Is(err, standup.ErrPlatformUnavailable) || errors.Is(err, standup.ErrNotFound) {
		return err
	}

	return standup.PlatformUnavailable("membership.RefreshMembership", err)
}

func (r *Refresher) clearAndAdd(ctx context.Context, usernames []string) (err error) {
	count, err := r.members.CountMembers(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		if err = r.members.ClearMembers(ctx); err != nil {
			return err
		}
	}

	for _, u := range usernames {
		if err = r.members.AddMember(ctx, u); err != nil {
			return err
		}
	}

	return nil
}
