package konnect

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ClusterTypes lists the control plane cluster types Konnect accepts as a filter.
var ClusterTypes = []string{
	"CLUSTER_TYPE_CONTROL_PLANE",
	"CLUSTER_TYPE_K8S_INGRESS_CONTROLLER",
	"CLUSTER_TYPE_CONTROL_PLANE_GROUP",
	"CLUSTER_TYPE_SERVERLESS",
}

// ListControlPlanesParams filters and pages the control plane list.
type ListControlPlanesParams struct {
	PageSize           int
	PageNumber         int
	FilterName         string
	FilterClusterType  string
	FilterCloudGateway *bool
	Labels             string
	Sort               string
}

// GroupMembershipsParams pages the members of a control plane group.
type GroupMembershipsParams struct {
	GroupID   string
	PageSize  int
	PageAfter string
}

// PageMeta is Konnect's page metadata.
type PageMeta struct {
	Number int    `json:"number,omitempty"`
	Size   int    `json:"size,omitempty"`
	Total  int    `json:"total,omitempty"`
	Next   string `json:"next,omitempty"`
}

// ControlPlaneList is returned by ListControlPlanes.
type ControlPlaneList struct {
	Metadata      PageMeta         `json:"metadata"`
	ControlPlanes []map[string]any `json:"controlPlanes"`
}

// ControlPlaneDetails is returned by GetControlPlane.
type ControlPlaneDetails struct {
	ControlPlane map[string]any `json:"controlPlane"`
}

// GroupMemberships is returned by ListControlPlaneGroupMemberships.
type GroupMemberships struct {
	GroupID  string           `json:"groupId"`
	Metadata PageMeta         `json:"metadata"`
	Members  []map[string]any `json:"members"`
}

// GroupMembershipStatus reports whether a control plane belongs to a group.
type GroupMembershipStatus struct {
	ControlPlaneID string `json:"controlPlaneId"`
	IsMember       bool   `json:"isMember"`
}

type pagedResponse struct {
	Meta struct {
		Page PageMeta `json:"page"`
	} `json:"meta"`
	Data []map[string]any `json:"data"`
}

// ListControlPlanes lists control planes in the organization.
func (c *Client) ListControlPlanes(ctx context.Context, p ListControlPlanesParams) (*ControlPlaneList, error) {
	q := url.Values{}
	if p.PageSize > 0 {
		q.Set("page[size]", strconv.Itoa(p.PageSize))
	}
	if p.PageNumber > 0 {
		q.Set("page[number]", strconv.Itoa(p.PageNumber))
	}
	if p.FilterName != "" {
		q.Set("filter[name][contains]", p.FilterName)
	}
	if p.FilterClusterType != "" {
		q.Set("filter[cluster_type][eq]", p.FilterClusterType)
	}
	if p.FilterCloudGateway != nil {
		q.Set("filter[cloud_gateway]", strconv.FormatBool(*p.FilterCloudGateway))
	}
	if p.Labels != "" {
		q.Set("labels", p.Labels)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}

	var resp pagedResponse
	if err := c.get(ctx, "/control-planes", q, &resp); err != nil {
		return nil, err
	}
	return &ControlPlaneList{Metadata: resp.Meta.Page, ControlPlanes: nonNil(resp.Data)}, nil
}

// GetControlPlane fetches one control plane by id.
func (c *Client) GetControlPlane(ctx context.Context, controlPlaneID string) (*ControlPlaneDetails, error) {
	if controlPlaneID == "" {
		return nil, fmt.Errorf("controlPlaneId is required")
	}
	var cp map[string]any
	if err := c.get(ctx, "/control-planes/"+url.PathEscape(controlPlaneID), nil, &cp); err != nil {
		return nil, err
	}
	return &ControlPlaneDetails{ControlPlane: cp}, nil
}

// ListControlPlaneGroupMemberships lists the members of a control plane group.
func (c *Client) ListControlPlaneGroupMemberships(ctx context.Context, p GroupMembershipsParams) (*GroupMemberships, error) {
	if p.GroupID == "" {
		return nil, fmt.Errorf("groupId is required")
	}
	q := url.Values{}
	if p.PageSize > 0 {
		q.Set("page[size]", strconv.Itoa(p.PageSize))
	}
	if p.PageAfter != "" {
		q.Set("page[after]", p.PageAfter)
	}

	var resp pagedResponse
	if err := c.get(ctx, "/control-planes/"+url.PathEscape(p.GroupID)+"/group-memberships", q, &resp); err != nil {
		return nil, err
	}
	return &GroupMemberships{GroupID: p.GroupID, Metadata: resp.Meta.Page, Members: nonNil(resp.Data)}, nil
}

// CheckControlPlaneGroupMembership reports whether a control plane is a
// member of any control plane group.
func (c *Client) CheckControlPlaneGroupMembership(ctx context.Context, controlPlaneID string) (*GroupMembershipStatus, error) {
	if controlPlaneID == "" {
		return nil, fmt.Errorf("controlPlaneId is required")
	}
	var resp struct {
		IsMember bool `json:"is_member"`
	}
	if err := c.get(ctx, "/control-planes/"+url.PathEscape(controlPlaneID)+"/group-member-status", nil, &resp); err != nil {
		return nil, err
	}
	return &GroupMembershipStatus{ControlPlaneID: controlPlaneID, IsMember: resp.IsMember}, nil
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}
