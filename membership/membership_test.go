package membership_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alexandre-normand/standupscot/chat"
	"github.com/alexandre-normand/standupscot/membership"
	"github.com/alexandre-normand/standupscot/standup"
	"github.com/alexandre-normand/standupscot/store/mocks"
	"github.com/alexandre-normand/standupscot/test/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCaptor(channels []chat.Channel, members map[string][]string) (captor *capture.ChatCaptor) {
	captor = capture.NewChatCaptor(nil, channels)
	for id, m := range members {
		captor.ChannelMembers[id] = m
	}

	return captor
}

func TestRefreshSwapsRosterWithReplacer(t *testing.T) {
	captor := newCaptor([]chat.Channel{{ID: "C1"}, {ID: "C2", IsMember: true}}, map[string][]string{"C2": {"U1", "U2"}})

	ms := new(mocks.ReplacingStorer)
	ms.On("ReplaceMembers", mock.Anything, []string{"U1", "U2"}).Return(nil).Once()

	count, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ms.AssertExpectations(t)
	ms.AssertNotCalled(t, "ClearMembers", mock.Anything)
}

func TestRefreshClearsThenAddsWithoutReplacer(t *testing.T) {
	captor := newCaptor([]chat.Channel{{ID: "C2", IsMember: true}}, map[string][]string{"C2": {"U1", "U2"}})

	ms := new(mocks.Storer)
	ms.On("CountMembers", mock.Anything).Return(3, nil).Once()
	clearCall := ms.On("ClearMembers", mock.Anything).Return(nil).Once()
	ms.On("AddMember", mock.Anything, "U1").Return(nil).Once().NotBefore(clearCall)
	ms.On("AddMember", mock.Anything, "U2").Return(nil).Once().NotBefore(clearCall)

	count, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ms.AssertExpectations(t)
}

func TestRefreshLeavesEmptyStoreUncleared(t *testing.T) {
	captor := newCaptor([]chat.Channel{{ID: "C2", IsMember: true}}, map[string][]string{"C2": {"U1"}})

	ms := new(mocks.Storer)
	ms.On("CountMembers", mock.Anything).Return(0, nil).Once()
	ms.On("AddMember", mock.Anything, "U1").Return(nil).Once()

	count, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ms.AssertNotCalled(t, "ClearMembers", mock.Anything)
}

func TestRefreshUsesConfiguredChannel(t *testing.T) {
	captor := newCaptor([]chat.Channel{{ID: "C1", IsMember: true}, {ID: "C2", IsMember: true}},
		map[string][]string{"C1": {"U1"}, "C2": {"U2", "U3"}})

	ms := new(mocks.ReplacingStorer)
	ms.On("ReplaceMembers", mock.Anything, []string{"U2", "U3"}).Return(nil).Once()

	count, err := membership.New(captor, ms, "C2").RefreshMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	ms.AssertExpectations(t)

	// Only the roster of the monitored channel is loaded
	assert.Equal(t, 1, captor.CallCount("ListChannelMembers"))
}

func TestRefreshDropsDuplicateMembers(t *testing.T) {
	captor := newCaptor([]chat.Channel{{ID: "C2", IsMember: true}}, map[string][]string{"C2": {"U1", "U2", "U1", "U2", "U3"}})

	ms := new(mocks.ReplacingStorer)
	ms.On("ReplaceMembers", mock.Anything, []string{"U1", "U2", "U3"}).Return(nil).Once()

	count, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	ms.AssertExpectations(t)
}

func TestRefreshWithConfiguredChannelNotJoined(t *testing.T) {
	testCases := map[string][]chat.Channel{
		"notAMember": {{ID: "C1", IsMember: true}, {ID: "C2"}},
		"notVisible": {{ID: "C1", IsMember: true}},
	}

	for name, channels := range testCases {
		t.Run(name, func(t *testing.T) {
			captor := newCaptor(channels, map[string][]string{"C1": {"U1"}})

			ms := new(mocks.ReplacingStorer)

			_, err := membership.New(captor, ms, "C2").RefreshMembership(context.Background())
			if assert.Error(t, err) {
				assert.True(t, errors.Is(err, standup.ErrNotFound))
				assert.Contains(t, err.Error(), "[C2]")
			}

			ms.AssertNotCalled(t, "ReplaceMembers", mock.Anything, mock.Anything)
			assert.Equal(t, 0, captor.CallCount("ListChannelMembers"))
		})
	}
}

func TestRefreshWithoutChannelYieldsNoMembers(t *testing.T) {
	captor := capture.NewChatCaptor(nil, []chat.Channel{{ID: "C1"}})

	ms := new(mocks.ReplacingStorer)
	ms.On("ReplaceMembers", mock.Anything, []string{}).Return(nil).Once()

	count, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	ms.AssertExpectations(t)
}

func TestRefreshPlatformFailureLeavesStoreUntouched(t *testing.T) {
	captor := capture.NewChatCaptor(nil, nil)
	captor.ListErr = fmt.Errorf("ratelimited")

	ms := new(mocks.Storer)

	_, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrPlatformUnavailable))
		assert.Contains(t, err.Error(), "ratelimited")
	}

	ms.AssertNotCalled(t, "CountMembers", mock.Anything)
	ms.AssertNotCalled(t, "ClearMembers", mock.Anything)
}

func TestRefreshStoreFailureIsReturned(t *testing.T) {
	captor := newCaptor([]chat.Channel{{ID: "C2", IsMember: true}}, map[string][]string{"C2": {"U1"}})

	ms := new(mocks.ReplacingStorer)
	ms.On("ReplaceMembers", mock.Anything, []string{"U1"}).Return(standup.StoreUnavailable("replace", fmt.Errorf("disk full"))).Once()

	_, err := membership.New(captor, ms, "").RefreshMembership(context.Background())
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, standup.ErrStoreUnavailable))
	}
}
