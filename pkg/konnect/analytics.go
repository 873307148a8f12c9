package konnect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// TimeRanges lists the relative time windows accepted by the analytics API.
var TimeRanges = []string{"15M", "1H", "6H", "12H", "24H", "7D"}

// DefaultTimeRange is used when no time range is given.
const DefaultTimeRange = "1H"

// QueryAPIRequestsParams filters an API request analytics query. Empty
// slices apply no filter.
type QueryAPIRequestsParams struct {
	TimeRange          string
	StatusCodes        []int
	ExcludeStatusCodes []int
	HTTPMethods        []string
	ConsumerIDs        []string
	ServiceIDs         []string
	RouteIDs           []string
	MaxResults         int
}

// ConsumerRequestsParams selects the requests made by one consumer.
type ConsumerRequestsParams struct {
	ConsumerID  string
	TimeRange   string
	SuccessOnly bool
	FailureOnly bool
	MaxResults  int
}

// APIRequest is one row of the analytics result, trimmed to the fields an
// operator usually looks at.
type APIRequest struct {
	RequestID        string      `json:"requestId"`
	Timestamp        string      `json:"timestamp"`
	HTTPMethod       string      `json:"httpMethod"`
	URI              string      `json:"uri"`
	StatusCode       json.Number `json:"statusCode,omitempty"`
	ConsumerID       string      `json:"consumerId,omitempty"`
	ServiceID        string      `json:"serviceId,omitempty"`
	RouteID          string      `json:"routeId,omitempty"`
	LatencyMs        json.Number `json:"latencyMs,omitempty"`
	GatewayLatencyMs json.Number `json:"gatewayLatencyMs,omitempty"`
	UpstreamLatency  json.Number `json:"upstreamLatencyMs,omitempty"`
	ClientIP         string      `json:"clientIp,omitempty"`
	ControlPlaneID   string      `json:"controlPlaneId,omitempty"`
}

// APIRequestsMetadata echoes the query that produced a result.
type APIRequestsMetadata struct {
	TotalRequests int            `json:"totalRequests"`
	TimeRange     string         `json:"timeRange"`
	Filters       map[string]any `json:"filters,omitempty"`
}

// APIRequestsResult is returned by QueryAPIRequests.
type APIRequestsResult struct {
	Metadata APIRequestsMetadata `json:"metadata"`
	Requests []APIRequest        `json:"requests"`
}

// ConsumerRequestsSummary aggregates a consumer's requests.
type ConsumerRequestsSummary struct {
	TotalRequests    int            `json:"totalRequests"`
	SuccessCount     int            `json:"successCount"`
	FailureCount     int            `json:"failureCount"`
	SuccessRate      string         `json:"successRate"`
	StatusCodeCounts map[string]int `json:"statusCodeCounts"`
	TopEndpoints     []EndpointHits `json:"topEndpoints,omitempty"`
}

// EndpointHits counts requests for one method+URI pair.
type EndpointHits struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
}

// ConsumerRequestsResult is returned by GetConsumerRequests.
type ConsumerRequestsResult struct {
	Metadata APIRequestsMetadata     `json:"metadata"`
	Summary  ConsumerRequestsSummary `json:"statistics"`
	Requests []APIRequest            `json:"requests"`
}

type analyticsFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type analyticsQuery struct {
	TimeRange struct {
		Type      string `json:"type"`
		TimeRange string `json:"time_range"`
	} `json:"time_range"`
	Filters []analyticsFilter `json:"filters"`
	Size    int               `json:"size,omitempty"`
}

type analyticsRow struct {
	RequestID       string      `json:"request_id"`
	RequestStart    string      `json:"request_start"`
	HTTPMethod      string      `json:"http_method"`
	RequestURI      string      `json:"request_uri"`
	StatusCode      json.Number `json:"status_code"`
	Consumer        string      `json:"consumer"`
	GatewayService  string      `json:"gateway_service"`
	Route           string      `json:"route"`
	ResponseLatency json.Number `json:"response_http_latency"`
	KongLatency     json.Number `json:"kong_latency"`
	UpstreamLatency json.Number `json:"upstream_latency"`
	ClientIP        string      `json:"client_ip"`
	ControlPlane    string      `json:"control_plane"`
}

func newAnalyticsQuery(timeRange string, size int) *analyticsQuery {
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	q := &analyticsQuery{Filters: []analyticsFilter{}, Size: size}
	q.TimeRange.Type = "relative"
	q.TimeRange.TimeRange = timeRange
	return q
}

func (q *analyticsQuery) in(field string, values any, n int) {
	if n > 0 {
		q.Filters = append(q.Filters, analyticsFilter{Field: field, Operator: "in", Value: values})
	}
}

func (q *analyticsQuery) notIn(field string, values any, n int) {
	if n > 0 {
		q.Filters = append(q.Filters, analyticsFilter{Field: field, Operator: "not_in", Value: values})
	}
}

func (c *Client) runAnalytics(ctx context.Context, q *analyticsQuery) ([]APIRequest, error) {
	var resp struct {
		Results []analyticsRow `json:"results"`
	}
	if err := c.post(ctx, "/api-requests", q, &resp); err != nil {
		return nil, err
	}
	out := make([]APIRequest, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, APIRequest{
			RequestID:        r.RequestID,
			Timestamp:        r.RequestStart,
			HTTPMethod:       r.HTTPMethod,
			URI:              r.RequestURI,
			StatusCode:       r.StatusCode,
			ConsumerID:       r.Consumer,
			ServiceID:        r.GatewayService,
			RouteID:          r.Route,
			LatencyMs:        r.ResponseLatency,
			GatewayLatencyMs: r.KongLatency,
			UpstreamLatency:  r.UpstreamLatency,
			ClientIP:         r.ClientIP,
			ControlPlaneID:   r.ControlPlane,
		})
	}
	return out, nil
}

// QueryAPIRequests runs an analytics query over recent API traffic.
func (c *Client) QueryAPIRequests(ctx context.Context, p QueryAPIRequestsParams) (*APIRequestsResult, error) {
	q := newAnalyticsQuery(p.TimeRange, p.MaxResults)
	q.in("status_code", p.StatusCodes, len(p.StatusCodes))
	q.notIn("status_code", p.ExcludeStatusCodes, len(p.ExcludeStatusCodes))
	q.in("http_method", p.HTTPMethods, len(p.HTTPMethods))
	q.in("consumer", p.ConsumerIDs, len(p.ConsumerIDs))
	q.in("gateway_service", p.ServiceIDs, len(p.ServiceIDs))
	q.in("route", p.RouteIDs, len(p.RouteIDs))

	requests, err := c.runAnalytics(ctx, q)
	if err != nil {
		return nil, err
	}

	filters := map[string]any{}
	if len(p.StatusCodes) > 0 {
		filters["statusCodes"] = p.StatusCodes
	}
	if len(p.ExcludeStatusCodes) > 0 {
		filters["excludeStatusCodes"] = p.ExcludeStatusCodes
	}
	if len(p.HTTPMethods) > 0 {
		filters["httpMethods"] = p.HTTPMethods
	}
	if len(p.ConsumerIDs) > 0 {
		filters["consumerIds"] = p.ConsumerIDs
	}
	if len(p.ServiceIDs) > 0 {
		filters["serviceIds"] = p.ServiceIDs
	}
	if len(p.RouteIDs) > 0 {
		filters["routeIds"] = p.RouteIDs
	}

	return &APIRequestsResult{
		Metadata: APIRequestsMetadata{
			TotalRequests: len(requests),
			TimeRange:     q.TimeRange.TimeRange,
			Filters:       filters,
		},
		Requests: requests,
	}, nil
}

// GetConsumerRequests returns one consumer's requests with success/failure
// statistics.
func (c *Client) GetConsumerRequests(ctx context.Context, p ConsumerRequestsParams) (*ConsumerRequestsResult, error) {
	if p.ConsumerID == "" {
		return nil, fmt.Errorf("consumerId is required")
	}
	if p.SuccessOnly && p.FailureOnly {
		return nil, fmt.Errorf("successOnly and failureOnly are mutually exclusive")
	}

	q := newAnalyticsQuery(p.TimeRange, p.MaxResults)
	q.in("consumer", []string{p.ConsumerID}, 1)
	switch {
	case p.SuccessOnly:
		q.in("status_code_grouped", []string{"2XX"}, 1)
	case p.FailureOnly:
		q.in("status_code_grouped", []string{"4XX", "5XX"}, 1)
	}

	requests, err := c.runAnalytics(ctx, q)
	if err != nil {
		return nil, err
	}

	filters := map[string]any{"consumerId": p.ConsumerID}
	if p.SuccessOnly {
		filters["successOnly"] = true
	}
	if p.FailureOnly {
		filters["failureOnly"] = true
	}

	return &ConsumerRequestsResult{
		Metadata: APIRequestsMetadata{
			TotalRequests: len(requests),
			TimeRange:     q.TimeRange.TimeRange,
			Filters:       filters,
		},
		Summary:  summarize(requests),
		Requests: requests,
	}, nil
}

// summarize computes per-status counts and the five busiest endpoints.
func summarize(requests []APIRequest) ConsumerRequestsSummary {
	s := ConsumerRequestsSummary{
		TotalRequests:    len(requests),
		StatusCodeCounts: map[string]int{},
		SuccessRate:      "0.00%",
	}
	hits := map[string]int{}
	for _, r := range requests {
		code := r.StatusCode.String()
		if code == "" {
			code = "unknown"
		}
		s.StatusCodeCounts[code]++
		if n, err := r.StatusCode.Int64(); err == nil && n < 400 {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
		hits[r.HTTPMethod+" "+r.URI]++
	}
	if s.TotalRequests > 0 {
		s.SuccessRate = fmt.Sprintf("%.2f%%", float64(s.SuccessCount)*100/float64(s.TotalRequests))
	}

	for endpoint, count := range hits {
		s.TopEndpoints = append(s.TopEndpoints, EndpointHits{Endpoint: endpoint, Count: count})
	}
	sort.Slice(s.TopEndpoints, func(i, j int) bool {
		if s.TopEndpoints[i].Count != s.TopEndpoints[j].Count {
			return s.TopEndpoints[i].Count > s.TopEndpoints[j].Count
		}
		return s.TopEndpoints[i].Endpoint < s.TopEndpoints[j].Endpoint
	})
	if len(s.TopEndpoints) > 5 {
		s.TopEndpoints = s.TopEndpoints[:5]
	}
	return s
}
