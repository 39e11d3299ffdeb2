package commands_test

import (
	"context"

	"github.com/alexandre-normand/standupscot/standup"
	"github.com/stretchr/testify/mock"
)

// mockServicer holds a mock implementation of both StandupServicer and CycleServicer
type mockServicer struct {
	mock.Mock
}

// Subscribe mocks an implementation of Subscribe
func (ms *mockServicer) Subscribe(ctx context.Context, username string) (err error) {
	args := ms.Called(ctx, username)

	return args.Error(0)
}

// Unsubscribe mocks an implementation of Unsubscribe
func (ms *mockServicer) Unsubscribe(ctx context.Context, username string) (err error) {
	args := ms.Called(ctx, username)

	return args.Error(0)
}

// TodayStandup mocks an implementation of TodayStandup
func (ms *mockServicer) TodayStandup(ctx context.Context, username string, date string) (record *standup.Record, err error) {
	args := ms.Called(ctx, username, date)

	if r := args.Get(0); r != nil {
		record = r.(*standup.Record)
	}

	return record, args.Error(1)
}

// History mocks an implementation of History
func (ms *mockServicer) History(ctx context.Context, username string, days int, today string) (records []standup.Record, err error) {
	args := ms.Called(ctx, username, days, today)

	if r := args.Get(0); r != nil {
		records = r.([]standup.Record)
	}

	return records, args.Error(1)
}

// RefreshMembership mocks an implementation of RefreshMembership
func (ms *mockServicer) RefreshMembership(ctx context.Context) (count int, err error) {
	args := ms.Called(ctx)

	return args.Int(0), args.Error(1)
}

// PromptStandups mocks an implementation of PromptStandups
func (ms *mockServicer) PromptStandups(ctx context.Context, date string) (sent int, err error) {
	args := ms.Called(ctx, date)

	return args.Int(0), args.Error(1)
}

// RemindLateSubmitters mocks an implementation of RemindLateSubmitters
func (ms *mockServicer) RemindLateSubmitters(ctx context.Context, date string) (sent int, err error) {
	args := ms.Called(ctx, date)

	return args.Int(0), args.Error(1)
}

// PostDigest mocks an implementation of PostDigest
func (ms *mockServicer) PostDigest(ctx context.Context, date string) (err error) {
	args := ms.Called(ctx, date)

	return args.Error(0)
}
