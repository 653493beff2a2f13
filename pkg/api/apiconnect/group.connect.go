package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/smartsplit/pkg/api"
)

const GroupServiceName = "smartsplit.v1.GroupService"

const (
	GroupServiceCreateGroupProcedure      = "/smartsplit.v1.GroupService/CreateGroup"
	GroupServiceListGroupsProcedure       = "/smartsplit.v1.GroupService/ListGroups"
	GroupServiceListGroupMembersProcedure = "/smartsplit.v1.GroupService/ListGroupMembers"
	GroupServiceSearchUsersProcedure      = "/smartsplit.v1.GroupService/SearchUsers"
)

// GroupServiceHandler is implemented by the group service.
type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	ListGroupMembers(context.Context, *connect.Request[api.ListGroupMembersRequest]) (*connect.Response[api.ListGroupMembersResponse], error)
	SearchUsers(context.Context, *connect.Request[api.SearchUsersRequest]) (*connect.Response[api.SearchUsersResponse], error)
}

// NewGroupServiceHandler returns the path to mount the service on and its handler.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(GroupServiceCreateGroupProcedure, connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts...))
	mux.Handle(GroupServiceListGroupsProcedure, connect.NewUnaryHandler(GroupServiceListGroupsProcedure, svc.ListGroups, opts...))
	mux.Handle(GroupServiceListGroupMembersProcedure, connect.NewUnaryHandler(GroupServiceListGroupMembersProcedure, svc.ListGroupMembers, opts...))
	mux.Handle(GroupServiceSearchUsersProcedure, connect.NewUnaryHandler(GroupServiceSearchUsersProcedure, svc.SearchUsers, opts...))
	return "/" + GroupServiceName + "/", mux
}

// GroupServiceClient calls GroupService over HTTP.
type GroupServiceClient interface {
	GroupServiceHandler
}

type groupServiceClient struct {
	createGroup      *connect.Client[api.CreateGroupRequest, api.CreateGroupResponse]
	listGroups       *connect.Client[api.ListGroupsRequest, api.ListGroupsResponse]
	listGroupMembers *connect.Client[api.ListGroupMembersRequest, api.ListGroupMembersResponse]
	searchUsers      *connect.Client[api.SearchUsersRequest, api.SearchUsersResponse]
}

// NewGroupServiceClient builds a client for the service at baseURL.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) GroupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &groupServiceClient{
		createGroup:      connect.NewClient[api.CreateGroupRequest, api.CreateGroupResponse](httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...),
		listGroups:       connect.NewClient[api.ListGroupsRequest, api.ListGroupsResponse](httpClient, baseURL+GroupServiceListGroupsProcedure, opts...),
		listGroupMembers: connect.NewClient[api.ListGroupMembersRequest, api.ListGroupMembersResponse](httpClient, baseURL+GroupServiceListGroupMembersProcedure, opts...),
		searchUsers:      connect.NewClient[api.SearchUsersRequest, api.SearchUsersResponse](httpClient, baseURL+GroupServiceSearchUsersProcedure, opts...),
	}
}

func (c *groupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *groupServiceClient) ListGroupMembers(ctx context.Context, req *connect.Request[api.ListGroupMembersRequest]) (*connect.Response[api.ListGroupMembersResponse], error) {
	return c.listGroupMembers.CallUnary(ctx, req)
}

func (c *groupServiceClient) SearchUsers(ctx context.Context, req *connect.Request[api.SearchUsersRequest]) (*connect.Response[api.SearchUsersResponse], error) {
	return c.searchUsers.CallUnary(ctx, req)
}
