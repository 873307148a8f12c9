package konnect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultPageSize is used for list calls when no size is given.
const DefaultPageSize = 100

// EntityKind names a core entity collection under a control plane.
type EntityKind string

// Core entity kinds.
const (
	KindServices  EntityKind = "services"
	KindRoutes    EntityKind = "routes"
	KindConsumers EntityKind = "consumers"
	KindPlugins   EntityKind = "plugins"
)

// EntityListParams pages through a core entity collection. Offset is the
// opaque cursor returned as NextOffset by the previous page.
type EntityListParams struct {
	ControlPlaneID string
	Size           int
	Offset         string
}

// EntityListMetadata describes one page.
type EntityListMetadata struct {
	ControlPlaneID string `json:"controlPlaneId"`
	Size           int    `json:"size"`
	Offset         string `json:"offset,omitempty"`
	NextOffset     string `json:"nextOffset,omitempty"`
	Count          int    `json:"count"`
}

// EntityList is one page of services, routes, consumers or plugins. Items
// are passed through as Konnect returned them.
type EntityList struct {
	Kind     EntityKind
	Metadata EntityListMetadata
	Items    []map[string]any
}

// MarshalJSON renders the items under the kind's name, e.g.
// {"metadata": {...}, "services": [...]}.
func (l *EntityList) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []map[string]any{}
	}
	return json.Marshal(map[string]any{
		"metadata":     l.Metadata,
		string(l.Kind): items,
	})
}

// ListServices lists gateway services in a control plane.
func (c *Client) ListServices(ctx context.Context, p EntityListParams) (*EntityList, error) {
	return c.listEntities(ctx, KindServices, p)
}

// ListRoutes lists routes in a control plane.
func (c *Client) ListRoutes(ctx context.Context, p EntityListParams) (*EntityList, error) {
	return c.listEntities(ctx, KindRoutes, p)
}

// ListConsumers lists consumers in a control plane.
func (c *Client) ListConsumers(ctx context.Context, p EntityListParams) (*EntityList, error) {
	return c.listEntities(ctx, KindConsumers, p)
}

// ListPlugins lists plugins in a control plane.
func (c *Client) ListPlugins(ctx context.Context, p EntityListParams) (*EntityList, error) {
	return c.listEntities(ctx, KindPlugins, p)
}

func (c *Client) listEntities(ctx context.Context, kind EntityKind, p EntityListParams) (*EntityList, error) {
	if p.ControlPlaneID == "" {
		return nil, fmt.Errorf("controlPlaneId is required")
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}

	q := url.Values{}
	q.Set("size", strconv.Itoa(p.Size))
	if p.Offset != "" {
		q.Set("offset", p.Offset)
	}

	var resp struct {
		Data   []map[string]any `json:"data"`
		Offset string           `json:"offset"`
	}
	path := "/control-planes/" + url.PathEscape(p.ControlPlaneID) + "/core-entities/" + string(kind)
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	return &EntityList{
		Kind: kind,
		Metadata: EntityListMetadata{
			ControlPlaneID: p.ControlPlaneID,
			Size:           p.Size,
			Offset:         p.Offset,
			NextOffset:     resp.Offset,
			Count:          len(resp.Data),
		},
		Items: resp.Data,
	}, nil
}
