// Package storetest provides a behavior test suite shared by all store.Storer implementations
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewStorer creates a new, empty, Storer to test. Implementations are expected to register
// any cleanup with t.Cleanup
type NewStorer func(t *testing.T) store.Storer

// Run runs the full suite against fresh storers created with newStorer
func Run(t *testing.T, newStorer NewStorer) {
	tests := []struct {
		name string
		test func(t *testing.T, s store.Storer)
	}{
		{"MembersAddListCount", testMembersAddListCount},
		{"ClearMembers", testClearMembers},
		{"ReplaceMembers", testReplaceMembers},
		{"OptOutOptIn", testOptOutOptIn},
		{"InsertAndFindByUserAndDate", testInsertAndFindByUserAndDate},
		{"FindByUserAndDateNotFound", testFindByUserAndDateNotFound},
		{"ResubmitKeepsOneRecord", testResubmitKeepsOneRecord},
		{"UpdateMissingRecord", testUpdateMissingRecord},
		{"FindByDateOrderedByTeam", testFindByDateOrderedByTeam},
		{"FindUsersSubmittedByDate", testFindUsersSubmittedByDate},
		{"FindHistory", testFindHistory},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.test(t, newStorer(t))
		})
	}
}

func strPtr(s string) *string {
	return &s
}

func testMembersAddListCount(t *testing.T, s store.Storer) {
	ctx := context.Background()

	count, err := s.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for _, u := range []string{"carol", "alice", "bob"} {
		require.NoError(t, s.AddMember(ctx, u))
	}

	// Adding an existing member doesn't duplicate it
	require.NoError(t, s.AddMember(ctx, "bob"))

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []standup.Member{{Username: "alice"}, {Username: "bob"}, {Username: "carol"}}, members)

	count, err = s.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func testClearMembers(t *testing.T, s store.Storer) {
	ctx := context.Background()

	require.NoError(t, s.AddMember(ctx, "alice"))
	require.NoError(t, s.AddMember(ctx, "bob"))
	require.NoError(t, s.ClearMembers(ctx))

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)

	// Clearing an empty store is fine too
	assert.NoError(t, s.ClearMembers(ctx))
}

func testReplaceMembers(t *testing.T, s store.Storer) {
	ctx := context.Background()

	r, ok := s.(store.MembershipReplacer)
	if !ok {
		t.Skip("storer doesn't support replacing members")
	}

	require.NoError(t, s.AddMember(ctx, "alice"))
	require.NoError(t, s.AddMember(ctx, "bob"))

	require.NoError(t, r.ReplaceMembers(ctx, []string{"bob", "dave"}))

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []standup.Member{{Username: "bob"}, {Username: "dave"}}, members)

	require.NoError(t, r.ReplaceMembers(ctx, []string{}))
	count, err := s.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testOptOutOptIn(t *testing.T, s store.Storer) {
	ctx := context.Background()

	require.NoError(t, s.OptOut(ctx, "carol"))
	require.NoError(t, s.OptOut(ctx, "dave"))
	require.NoError(t, s.OptOut(ctx, "carol"))

	unsubscribed, err := s.ListUnsubscribed(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"carol", "dave"}, unsubscribed)

	isUnsubscribed, err := s.IsUnsubscribed(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, isUnsubscribed)

	require.NoError(t, s.OptIn(ctx, "carol"))

	isUnsubscribed, err = s.IsUnsubscribed(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, isUnsubscribed)

	// Opting in someone who never opted out is a no-op
	assert.NoError(t, s.OptIn(ctx, "erin"))

	unsubscribed, err = s.ListUnsubscribed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, unsubscribed)
}

func testInsertAndFindByUserAndDate(t *testing.T, s store.Storer) {
	ctx := context.Background()

	rec := standup.Record{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "write tests", Previous: strPtr("done X")}
	require.NoError(t, s.Insert(ctx, rec))

	found, err := s.FindByUserAndDate(ctx, "alice", "2024-01-01")
	require.NoError(t, err)
	if assert.NotNil(t, found) {
		assert.Equal(t, rec, *found)
		assert.Nil(t, found.Blockers)
	}
}

func testFindByUserAndDateNotFound(t *testing.T, s store.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, standup.Record{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "a"}))

	_, err := s.FindByUserAndDate(ctx, "alice", "2024-01-02")
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrNotFound))
	}
}

func testResubmitKeepsOneRecord(t *testing.T, s store.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, standup.Record{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "first"}))
	require.NoError(t, s.Update(ctx, standup.Record{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "second", Blockers: strPtr("none")}))

	records, err := s.FindByDate(ctx, "2024-01-01")
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, "second", records[0].Today)
		if assert.NotNil(t, records[0].Blockers) {
			assert.Equal(t, "none", *records[0].Blockers)
		}
	}

	// Inserting over an existing key replaces the record as well
	require.NoError(t, s.Insert(ctx, standup.Record{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "third"}))
	records, err = s.FindByDate(ctx, "2024-01-01")
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, "third", records[0].Today)
	}
}

func testUpdateMissingRecord(t *testing.T, s store.Storer) {
	err := s.Update(context.Background(), standup.Record{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "a"})
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrNotFound))
	}
}

func testFindByDateOrderedByTeam(t *testing.T, s store.Storer) {
	ctx := context.Background()

	for _, rec := range []standup.Record{
		{Username: "dave", Team: "web", DatePosted: "2024-01-01", Today: "d"},
		{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "a"},
		{Username: "carol", Team: "web", DatePosted: "2024-01-01", Today: "c"},
		{Username: "bob", Team: "core", DatePosted: "2024-01-01", Today: "b"},
		{Username: "alice", Team: "core", DatePosted: "2024-01-02", Today: "other day"},
	} {
		require.NoError(t, s.Insert(ctx, rec))
	}

	records, err := s.FindByDate(ctx, "2024-01-01")
	require.NoError(t, err)

	usernames := make([]string, 0)
	for _, r := range records {
		usernames = append(usernames, r.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, usernames)

	records, err = s.FindByDate(ctx, "2023-12-31")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testFindUsersSubmittedByDate(t *testing.T, s store.Storer) {
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, standup.Record{Username: "bob", Team: "core", DatePosted: "2024-01-01", Today: "b"}))
	require.NoError(t, s.Insert(ctx, standup.Record{Username: "alice", Team: "web", DatePosted: "2024-01-01", Today: "a"}))
	require.NoError(t, s.Insert(ctx, standup.Record{Username: "carol", Team: "web", DatePosted: "2024-01-02", Today: "c"}))

	usernames, err := s.FindUsersSubmittedByDate(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, usernames)
}

func testFindHistory(t *testing.T, s store.Storer) {
	ctx := context.Background()

	for _, rec := range []standup.Record{
		{Username: "alice", Team: "core", DatePosted: "2024-01-01", Today: "1"},
		{Username: "alice", Team: "core", DatePosted: "2024-01-03", Today: "3"},
		{Username: "bob", Team: "core", DatePosted: "2024-01-03", Today: "b3"},
		{Username: "alice", Team: "core", DatePosted: "2024-01-05", Today: "5"},
		{Username: "alice", Team: "core", DatePosted: "2024-01-08", Today: "8"},
	} {
		require.NoError(t, s.Insert(ctx, rec))
	}

	records, err := s.FindHistory(ctx, "alice", "2024-01-01", "2024-01-05")
	require.NoError(t, err)

	days := make([]string, 0)
	for _, r := range records {
		assert.Equal(t, "alice", r.Username)
		days = append(days, r.Today)
	}
	assert.Equal(t, []string{"1", "3", "5"}, days)

	records, err = s.FindHistory(ctx, "erin", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Empty(t, records)
}
