// Package store defines the persistence interfaces used by standupscot along with the default
// leveldb implementation. Other implementations live in sub-packages (inmemorydb, datastoredb and sqldb)
package store

import (
	"context"
	"io"

	"github.com/alexandre-normand/standupscot/standup"
)

// MembershipStorer is implemented by any value that holds the set of users known to currently
// belong to the monitored channel
type MembershipStorer interface {
	// ListMembers returns all known channel members
	ListMembers(ctx context.Context) (members []standup.Member, err error)

	// AddMember adds a channel member
	AddMember(ctx context.Context, username string) (err error)

	// ClearMembers deletes all channel members
	ClearMembers(ctx context.Context) (err error)

	// CountMembers returns the number of channel members
	CountMembers(ctx context.Context) (count int, err error)
}

// MembershipReplacer is implemented by membership stores able to swap the whole
// member set in a single step. When available, it's preferred over clearing and
// re-adding members one by one
type MembershipReplacer interface {
	ReplaceMembers(ctx context.Context, usernames []string) (err error)
}

// PreferenceStorer is implemented by any value that holds the users who opted out of standup prompts
type PreferenceStorer interface {
	// ListUnsubscribed returns the usernames of all users who opted out
	ListUnsubscribed(ctx context.Context) (usernames []string, err error)

	// IsUnsubscribed returns true if the user opted out
	IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error)

	// OptOut marks a user as unsubscribed
	OptOut(ctx context.Context, username string) (err error)

	// OptIn removes a user from the unsubscribed users
	OptIn(ctx context.Context, username string) (err error)
}

// StandupStorer is implemented by any value that holds standup records keyed by username and date. There
// is at most one record for a given username and date: inserting over an existing key replaces it
type StandupStorer interface {
	// Insert stores a new record
	Insert(ctx context.Context, record standup.Record) (err error)

	// Update replaces an existing record. An ErrNotFound error is returned if there's no record
	// for the same username and date
	Update(ctx context.Context, record standup.Record) (err error)

	// FindByDate returns all records posted on date ordered by team and then by username
	FindByDate(ctx context.Context, date string) (records []standup.Record, err error)

	// FindByUserAndDate returns the record posted by username on date. An ErrNotFound error is returned
	// if there's none
	FindByUserAndDate(ctx context.Context, username string, date string) (record *standup.Record, err error)

	// FindUsersSubmittedByDate returns the usernames of all users who posted a standup on date
	FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error)

	// FindHistory returns the records of a user posted between fromDate and toDate (both inclusive) ordered by date
	FindHistory(ctx context.Context, username string, fromDate string, toDate string) (records []standup.Record, err error)
}

// Storer is implemented by storage backends covering all of standupscot's persistence
type Storer interface {
	MembershipStorer
	PreferenceStorer
	StandupStorer
	io.Closer
}
