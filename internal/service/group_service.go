package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/smartsplit/internal/auth"
	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/middleware"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/storage"
	"github.com/mmynk/smartsplit/pkg/api"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

// searchLimit caps SearchUsers results.
const searchLimit = 10

// GroupService implements the Connect GroupService.
type GroupService struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{store: store, logger: logger, now: time.Now}
}

// CreateGroup creates a group with the caller and the listed users as members.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateGroup rejected", err)
	}

	for _, id := range req.Msg.MemberIDs {
		user, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, toConnectError(ctx, s.logger, "CreateGroup failed", err)
		}
		if user == nil {
			return nil, toConnectError(ctx, s.logger, "CreateGroup rejected", fmt.Errorf("%w: %s", errUnknownUser, id))
		}
	}

	group := &models.Group{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Msg.Name),
		CreatedBy: userID,
		CreatedAt: s.now().Unix(),
	}
	if err := s.store.CreateGroup(ctx, group, req.Msg.MemberIDs); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateGroup failed", ledger.StorageFailure("failed to create group", err))
	}

	s.logger.InfoContext(ctx, "Group created", "group_id", group.ID, "member_count", group.MemberCount)
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(*group)}), nil
}

// ListGroups returns the caller's groups, newest first.
func (s *GroupService) ListGroups(ctx context.Context, _ *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "ListGroups failed", ledger.StorageFailure("failed to list groups", err))
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g)
	}
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// ListGroupMembers returns a group's members in join order. Only members
// may list them.
func (s *GroupService) ListGroupMembers(ctx context.Context, req *connect.Request[api.ListGroupMembersRequest]) (*connect.Response[api.ListGroupMembersResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "ListGroupMembers rejected", err)
	}

	members, err := s.store.ListMembers(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "ListGroupMembers failed", ledger.StorageFailure("failed to list members", err))
	}
	if err := requireMember(req.Msg.GroupID, members, userID); err != nil {
		return nil, toConnectError(ctx, s.logger, "ListGroupMembers rejected", err, "group_id", req.Msg.GroupID, "user_id", userID)
	}

	out := make([]api.Member, len(members))
	for i, m := range members {
		out[i] = toAPIMember(m)
	}
	return connect.NewResponse(&api.ListGroupMembersResponse{Members: out}), nil
}

// SearchUsers matches the query against usernames and emails.
func (s *GroupService) SearchUsers(ctx context.Context, req *connect.Request[api.SearchUsersRequest]) (*connect.Response[api.SearchUsersResponse], error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	req.Msg.Query = strings.TrimSpace(req.Msg.Query)
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "SearchUsers rejected", err)
	}

	users, err := s.store.SearchUsers(ctx, req.Msg.Query, searchLimit)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "SearchUsers failed", ledger.StorageFailure("failed to search users", err))
	}

	out := make([]api.User, len(users))
	for i := range users {
		out[i] = toAPIUser(&users[i])
	}
	return connect.NewResponse(&api.SearchUsersResponse{Users: out}), nil
}

// callerID returns the authenticated user id set by middleware.RequireAuth.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// requireMember distinguishes a missing group (no members at all) from a
// caller outside an existing group.
func requireMember(groupID string, members []models.Member, userID string) error {
	if len(members) == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, groupID)
	}
	for _, m := range members {
		if m.UserID == userID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not in group %s", ledger.ErrNotMember, userID, groupID)
}
