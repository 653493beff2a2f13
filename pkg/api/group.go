package api

type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
	MemberCount int    `json:"member_count"`
}

type Member struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	JoinedAt int64  `json:"joined_at"`
}

// CreateGroupRequest creates a group. The caller is always added as a
// member; MemberIDs lists everyone else.
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	MemberIDs []string `json:"member_ids" validate:"dive,required"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type ListGroupMembersRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type ListGroupMembersResponse struct {
	Members []Member `json:"members"`
}

type SearchUsersRequest struct {
	Query string `json:"query" validate:"required,min=2"`
}

type SearchUsersResponse struct {
	Users []User `json:"users"`
}
