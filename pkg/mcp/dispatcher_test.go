package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CAcquaviva/mcp-konnect/pkg/konnect"
)

// recordingObserver keeps every observation.
type recordingObserver struct {
	mu  sync.Mutex
	obs []ToolObservation
}

func (r *recordingObserver) StartInvoke(ctx context.Context, _ string) context.Context {
	return ctx
}

func (r *recordingObserver) ObserveInvoke(_ context.Context, o ToolObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, o)
}

func (r *recordingObserver) last() ToolObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.obs[len(r.obs)-1]
}

func newTestDispatcher(t *testing.T, api konnect.API, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(mustRegistry(t), api, opts...)
	require.NoError(t, err)
	return d
}

func TestDispatcher_RoutesEveryRegisteredTool(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, &fakeAPI{})
	names := mustRegistry(t).Names()
	sort.Strings(names)
	assert.Equal(t, names, d.Names())
}

func TestDispatcher_ListServicesSuccess(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	d := newTestDispatcher(t, api)

	result := d.Dispatch(context.Background(), "list_services", map[string]interface{}{"controlPlaneId": "cp1"})
	require.False(t, result.IsError, result.Content[0].Text)

	assert.Equal(t, []string{"list_services"}, api.Calls())
	assert.Equal(t, konnect.EntityListParams{ControlPlaneID: "cp1", Size: 100}, api.entityParams)

	text := result.Content[0].Text
	assert.Contains(t, text, "\n  \"metadata\": {")
	assert.Contains(t, text, "\n  \"services\": [")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	services, ok := payload["services"].([]interface{})
	require.True(t, ok)
	assert.Len(t, services, 1)
}

func TestDispatcher_PreservesUpstreamNumbers(t *testing.T) {
	t.Parallel()

	const item = `{"id":"svc-1","big":9007199254740993,"f":1.10,"nested":{"port":8443,"weight":0.50},"tags":["a"]}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/control-planes/cp1/core-entities/services", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[` + item + `]}`))
	}))
	defer upstream.Close()

	d := newTestDispatcher(t, konnect.NewClient(upstream.URL, "kpat_test"))
	result := d.Dispatch(context.Background(), "list_services", map[string]interface{}{"controlPlaneId": "cp1"})
	require.False(t, result.IsError, result.Content[0].Text)

	text := result.Content[0].Text
	assert.Contains(t, text, "9007199254740993")
	assert.Contains(t, text, "1.10")
	assert.Contains(t, text, "0.50")

	decode := func(s string, v interface{}) {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		require.NoError(t, dec.Decode(v))
	}
	var want map[string]interface{}
	decode(item, &want)
	var payload struct {
		Services []map[string]interface{} `json:"services"`
	}
	decode(text, &payload)
	require.Len(t, payload.Services, 1)
	assert.Equal(t, want, payload.Services[0])
	assert.Equal(t, json.Number("9007199254740993"), payload.Services[0]["big"])
	assert.Equal(t, json.Number("1.10"), payload.Services[0]["f"])
}

func TestDispatcher_ForwardsArguments(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	d := newTestDispatcher(t, api)

	result := d.Dispatch(context.Background(), "query_api_requests", map[string]interface{}{
		"timeRange":   "24H",
		"statusCodes": []interface{}{float64(500), float64(503)},
		"httpMethods": []interface{}{"POST"},
		"maxResults":  float64(25),
	})
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Equal(t, konnect.QueryAPIRequestsParams{
		TimeRange:   "24H",
		StatusCodes: []int{500, 503},
		HTTPMethods: []string{"POST"},
		MaxResults:  25,
	}, api.queryParams)

	cloud := false
	result = d.Dispatch(context.Background(), "list_control_planes", map[string]interface{}{
		"filterName":         "prod",
		"filterCloudGateway": false,
	})
	require.False(t, result.IsError, result.Content[0].Text)
	assert.Equal(t, konnect.ListControlPlanesParams{
		PageSize:           10,
		PageNumber:         1,
		FilterName:         "prod",
		FilterCloudGateway: &cloud,
	}, api.cpParams)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	d := newTestDispatcher(t, api)

	result := d.Dispatch(context.Background(), "delete_everything", nil)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "delete_everything")
	assert.Contains(t, result.Content[0].Text, "unknown tool")
	assert.Empty(t, api.Calls())
}

func TestDispatcher_UpstreamFailureText(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{err: &konnect.APIError{StatusCode: 401, Title: "Unauthorized", Detail: "Invalid token"}}
	d := newTestDispatcher(t, api)

	result := d.Dispatch(context.Background(), "get_control_plane", map[string]interface{}{"controlPlaneId": "cp1"})
	require.True(t, result.IsError)
	want := "Error: Konnect API error 401 Unauthorized: Invalid token\n\n" +
		"Troubleshooting tips:\n" +
		"1. Verify your API key is valid and has sufficient permissions\n" +
		"2. Check that the parameters provided are valid\n" +
		"3. Ensure your network connection to the Kong API is working properly"
	assert.Equal(t, want, result.Content[0].Text)
}

func TestDispatcher_InvalidArgumentsNotForwarded(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	d := newTestDispatcher(t, api)

	result := d.Dispatch(context.Background(), "list_routes", map[string]interface{}{"size": float64(10)})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Error: invalid arguments: missing properties: 'controlPlaneId'")
	assert.Contains(t, result.Content[0].Text, "Troubleshooting tips:")
	assert.Empty(t, api.Calls())
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{panicOn: "get_control_plane"}
	obs := &recordingObserver{}
	d := newTestDispatcher(t, api, WithObserver(obs))

	result := d.Dispatch(context.Background(), "get_control_plane", map[string]interface{}{"controlPlaneId": "cp1"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "internal error while running get_control_plane: boom")
	assert.Equal(t, ErrorKindPanic, obs.last().ErrorKind)

	// The dispatcher keeps working afterwards.
	result = d.Dispatch(context.Background(), "list_services", map[string]interface{}{"controlPlaneId": "cp1"})
	assert.False(t, result.IsError)
}

func TestDispatcher_ReportsObservations(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	d := newTestDispatcher(t, &fakeAPI{}, WithObserver(obs))

	d.Dispatch(context.Background(), "check_control_plane_group_membership", map[string]interface{}{"controlPlaneId": "cp1"})
	got := obs.last()
	assert.Equal(t, "check_control_plane_group_membership", got.ToolName)
	assert.True(t, got.Success)
	assert.Empty(t, got.ErrorKind)
	assert.False(t, got.Start.IsZero())

	d.Dispatch(context.Background(), "nope", nil)
	got = obs.last()
	assert.False(t, got.Success)
	assert.Equal(t, ErrorKindUnknownTool, got.ErrorKind)

	d.Dispatch(context.Background(), "get_control_plane", map[string]interface{}{})
	assert.Equal(t, ErrorKindInvalidArguments, obs.last().ErrorKind)
}

func TestDispatcher_UpstreamErrorKind(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	d := newTestDispatcher(t, &fakeAPI{err: errors.New("dial tcp: connection refused")}, WithObserver(obs))

	result := d.Dispatch(context.Background(), "list_consumers", map[string]interface{}{"controlPlaneId": "cp1"})
	assert.True(t, result.IsError)
	assert.Equal(t, ErrorKindUpstream, obs.last().ErrorKind)
}

func TestNewDispatcher_RoutingMismatch(t *testing.T) {
	t.Parallel()

	registry := mustRegistry(t)

	routes := toolRoutes()
	delete(routes, "list_plugins")
	_, err := newDispatcher(registry, &fakeAPI{}, routes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrouted tools [list_plugins]")

	routes = toolRoutes()
	routes["rogue_tool"] = handleListServices
	_, err = newDispatcher(registry, &fakeAPI{}, routes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered routes [rogue_tool]")
}

func TestNewDispatcher_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewDispatcher(nil, &fakeAPI{})
	assert.Error(t, err)

	_, err = NewDispatcher(mustRegistry(t), nil)
	assert.Error(t, err)
}
