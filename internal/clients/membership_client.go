// internal/clients/membership_client.go
package clients

import (
	"context"
	"net/http"
	"net/url"

	"loandesk/internal/membership"
)

type MembershipClient struct {
	base
}

var _ membership.Service = (*MembershipClient)(nil)

func NewMembershipClient(baseURL string, hc *http.Client) *MembershipClient {
	return &MembershipClient{base: newBase(baseURL, hc)}
}

var membershipErrors = byStatus(map[int]error{
	http.StatusBadRequest:      membership.ErrInvalidMember,
	http.StatusNotFound:        membership.ErrMemberNotFound,
	http.StatusConflict:        membership.ErrMemberExists,
	http.StatusTooManyRequests: membership.ErrRateLimited,
})

func (c *MembershipClient) RegisterMember(ctx context.Context, id, name string) (*membership.Member, error) {
	req := struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}{id, name}

	var member membership.Member
	if err := c.do(ctx, http.MethodPost, "/members", req, &member, http.StatusCreated, membershipErrors); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *MembershipClient) GetMember(ctx context.Context, id string) (*membership.Member, error) {
	var member membership.Member
	if err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(id), nil, &member, http.StatusOK, membershipErrors); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *MembershipClient) ListMembers(ctx context.Context) ([]membership.Member, error) {
	var members []membership.Member
	if err := c.do(ctx, http.MethodGet, "/members", nil, &members, http.StatusOK, membershipErrors); err != nil {
		return nil, err
	}
	return members, nil
}
