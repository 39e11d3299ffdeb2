// Package mocks contains mocks of the store package interfaces
package mocks

import (
	"context"

	"github.com/alexandre-normand/standupscot/standup"
	"github.com/stretchr/testify/mock"
)

// Storer holds a mock implementation of store.Storer
type Storer struct {
	mock.Mock
}

// ListMembers mocks an implementation of ListMembers
func (ms *Storer) ListMembers(ctx context.Context) (members []standup.Member, err error) {
	args := ms.Called(ctx)

	if v := args.Get(0); v != nil {
		members = v.([]standup.Member)
	}

	return members, args.Error(1)
}

// AddMember mocks an implementation of AddMember
func (ms *Storer) AddMember(ctx context.Context, username string) (err error) {
	args := ms.Called(ctx, username)

	return args.Error(0)
}

// ClearMembers mocks an implementation of ClearMembers
func (ms *Storer) ClearMembers(ctx context.Context) (err error) {
	args := ms.Called(ctx)

	return args.Error(0)
}

// CountMembers mocks an implementation of CountMembers
func (ms *Storer) CountMembers(ctx context.Context) (count int, err error) {
	args := ms.Called(ctx)

	return args.Int(0), args.Error(1)
}

// ListUnsubscribed mocks an implementation of ListUnsubscribed
func (ms *Storer) ListUnsubscribed(ctx context.Context) (usernames []string, err error) {
	args := ms.Called(ctx)

	if v := args.Get(0); v != nil {
		usernames = v.([]string)
	}

	return usernames, args.Error(1)
}

// IsUnsubscribed mocks an implementation of IsUnsubscribed
func (ms *Storer) IsUnsubscribed(ctx context.Context, username string) (unsubscribed bool, err error) {
	args := ms.Called(ctx, username)

	return args.Bool(0), args.Error(1)
}

// OptOut mocks an implementation of OptOut
func (ms *Storer) OptOut(ctx context.Context, username string) (err error) {
	args := ms.Called(ctx, username)

	return args.Error(0)
}

// OptIn mocks an implementation of OptIn
func (ms *Storer) OptIn(ctx context.Context, username string) (err error) {
	args := ms.Called(ctx, username)

	return args.Error(0)
}

// Insert mocks an implementation of Insert
func (ms *Storer) Insert(ctx context.Context, record standup.Record) (err error) {
	args := ms.Called(ctx, record)

	return args.Error(0)
}

// Update mocks an implementation of Update
func (ms *Storer) Update(ctx context.Context, record standup.Record) (err error) {
	args := ms.Called(ctx, record)

	return args.Error(0)
}

// FindByDate mocks an implementation of FindByDate
func (ms *Storer) FindByDate(ctx context.Context, date string) (records []standup.Record, err error) {
	args := ms.Called(ctx, date)

	if v := args.Get(0); v != nil {
		records = v.([]standup.Record)
	}

	return records, args.Error(1)
}

// FindByUserAndDate mocks an implementation of FindByUserAndDate
func (ms *Storer) FindByUserAndDate(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	args := ms.Called(ctx, username, date)

	if v := args.Get(0); v != nil {
		record = v.(*standup.Record)
	}

	return record, args.Error(1)
}

// FindUsersSubmittedByDate mocks an implementation of FindUsersSubmittedByDate
func (ms *Storer) FindUsersSubmittedByDate(ctx context.Context, date string) (usernames []string, err error) {
	args := ms.Called(ctx, date)

	if v := args.Get(0); v != nil {
		usernames = v.([]string)
	}

	return usernames, args.Error(1)
}

// FindHistory mocks an implementation of FindHistory
func (ms *Storer) FindHistory(ctx context.Context, username string, fromDate string, toDate string) (records []standup.Record, err error) {
	args := ms.Called(ctx, username, fromDate, toDate)

	if v := args.Get(0); v != nil {
		records = v.([]standup.Record)
	}

	return records, args.Error(1)
}

// Close mocks an implementation of Close
func (ms *Storer) Close() (err error) {
	args := ms.Called()

	return args.Error(0)
}

// ReplacingStorer holds a mock implementation of store.Storer that also implements store.MembershipReplacer
type ReplacingStorer struct {
	Storer
}

// ReplaceMembers mocks an implementation of ReplaceMembers
func (ms *ReplacingStorer) ReplaceMembers(ctx context.Context, usernames []string) (err error) {
	args := ms.Called(ctx, usernames)

	return args.Error(0)
}
