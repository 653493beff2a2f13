package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/smartsplit/pkg/api"
)

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	resp, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "  Roommates ",
		MemberIDs: []string{bob.user.ID, bob.user.ID, alice.user.ID},
	}))
	require.NoError(t, err)
	group := resp.Msg.Group
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "Roommates", group.Name)
	assert.Equal(t, alice.user.ID, group.CreatedBy)
	assert.Equal(t, 2, group.MemberCount, "duplicates are ignored")

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{Name: "x"}))
		requireCode(t, connect.CodeUnauthenticated, err)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{}))
		requireCode(t, connect.CodeInvalidArgument, err)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
			Name: "Trip", MemberIDs: []string{"no-such-user"},
		}))
		requireCode(t, connect.CodeInvalidArgument, err)
	})
}

func TestListGroupsAndMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	first := env.createGroup(t, alice, "Roommates", bob)
	second := env.createGroup(t, bob, "Ski Trip")

	resp, err := env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Groups, 2)
	ids := []string{resp.Msg.Groups[0].ID, resp.Msg.Groups[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	resp, err = env.groups.ListGroups(ctx, as(carol, &api.ListGroupsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Groups)

	members, err := env.groups.ListGroupMembers(ctx, as(bob, &api.ListGroupMembersRequest{GroupID: first.ID}))
	require.NoError(t, err)
	require.Len(t, members.Msg.Members, 2)
	assert.Equal(t, alice.user.ID, members.Msg.Members[0].UserID, "creator joins first")
	assert.Equal(t, "bob", members.Msg.Members[1].Username)

	_, err = env.groups.ListGroupMembers(ctx, as(carol, &api.ListGroupMembersRequest{GroupID: first.ID}))
	requireCode(t, connect.CodePermissionDenied, err)

	_, err = env.groups.ListGroupMembers(ctx, as(carol, &api.ListGroupMembersRequest{GroupID: "missing"}))
	requireCode(t, connect.CodeNotFound, err)
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	env.register(t, "alicia")
	env.register(t, "bob")

	resp, err := env.groups.SearchUsers(ctx, as(alice, &api.SearchUsersRequest{Query: "ALI"}))
	require.NoError(t, err)
	names := make([]string, len(resp.Msg.Users))
	for i, u := range resp.Msg.Users {
		names[i] = u.Username
	}
	assert.Equal(t, []string{"alice", "alicia"}, names)

	_, err = env.groups.SearchUsers(ctx, as(alice, &api.SearchUsersRequest{Query: " a "}))
	requireCode(t, connect.CodeInvalidArgument, err)
}
