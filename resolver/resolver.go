// Package resolver computes the late submitters of a given day: the channel members who are
// still subscribed to prompts and haven't posted a standup yet
package resolver

import (
	"context"
	"errors"

	"github.com/alexandre-normand/standupscot/standup"
	"golang.org/x/sync/errgroup"
)

// MemberLister is implemented by any value that lists the current channel members
type MemberLister interface {
	ListMembers(ctx context.Context) (members []standup.Member, err error)
}

// UnsubscribedLister is implemented by any value that lists the users who opted out
type UnsubscribedLister interface {
	ListUnsubscribed(ctx context.Context) (usernames []string, err error)
}

// SubmissionFinder is implemented by any value that finds the users who posted a standup on a date
type SubmissionFinder interface {
	FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error)
}

// Resolver resolves late submitters from three independent sources
type Resolver struct {
	members      MemberLister
	unsubscribed UnsubscribedLister
	submissions  SubmissionFinder
}

// New returns a new Resolver. A store.Storer can serve as all three sources
func New(members MemberLister, unsubscribed UnsubscribedLister, submissions SubmissionFinder) (r *Resolver) {
	return &Resolver{members: members, unsubscribed: unsubscribed, submissions: submissions}
}

// ResolveLateSubmitters returns the usernames of the members who haven't posted a standup on targetDate and
// didn't opt out, in the order the members are listed. The three sources are read concurrently and if any of
// them fails, the whole resolution fails with an ErrStoreUnavailable error and no partial result
func (r *Resolver) ResolveLateSubmitters(ctx context.Context, targetDate string) (usernames []string, err error) {
	date, err := standup.ParseDate(targetDate)
	if err != nil {
		return nil, err
	}

	var members []standup.Member
	var submitted, unsubscribed []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		unsubscribed, err = r.unsubscribed.ListUnsubscribed(gctx)
		return asStoreUnavailable("resolver.listUnsubscribed", err)
	})

	g.Go(func() (err error) {
		submitted, err = r.submissions.FindUsersSubmittedByDate(gctx, date)
		return asStoreUnavailable("resolver.findUsersSubmittedByDate", err)
	})

	g.Go(func() (err error) {
		members, err = r.members.ListMembers(gctx)
		return asStoreUnavailable("resolver.listMembers", err)
	})

	if err = g.Wait(); err != nil {
		return nil, err
	}

	return LateSubmitters(members, submitted, unsubscribed), nil
}

// LateSubmitters returns members - submitted - unsubscribed preserving the order of members. Duplicate members
// are only returned once
func LateSubmitters(members []standup.Member, submitted []string, unsubscribed []string) (usernames []string) {
	excluded := make(map[string]bool, len(submitted)+len(unsubscribed))
	for _, u := range submitted {
		excluded[u] = true
	}

	for _, u := range unsubscribed {
		excluded[u] = true
	}

	usernames = make([]string, 0)
	for _, m := range members {
		if excluded[m.Username] {
			continue
		}

		// Marking returned members as excluded also drops duplicates
		excluded[m.Username] = true
		usernames = append(usernames, m.Username)
	}

	return usernames
}

// asStoreUnavailable keeps collaborator errors that already are ErrStoreUnavailable and wraps any other
func asStoreUnavailable(op string, err error) error {
	if err == nil || errors.Is(err, standup.ErrStoreUnavailable) {
		return err
	}

	return standup.StoreUnavailable(op, err)
}
