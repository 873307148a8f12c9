package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/CAcquaviva/mcp-konnect/pkg/konnect"
)

// fakeAPI is an in-memory konnect.API that records calls.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	entityParams konnect.EntityListParams
	queryParams  konnect.QueryAPIRequestsParams
	cpParams     konnect.ListControlPlanesParams

	err     error
	panicOn string

	// gate, when set, blocks ListServices until closed; entered is signalled
	// on each entry.
	gate    chan struct{}
	entered chan struct{}

	inFlight    int
	maxInFlight int

	// spanCtx is the span context seen by the last list call.
	spanCtx trace.SpanContext
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.panicOn == name {
		panic("boom")
	}
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) QueryAPIRequests(_ context.Context, p konnect.QueryAPIRequestsParams) (*konnect.APIRequestsResult, error) {
	f.record("query_api_requests")
	f.mu.Lock()
	f.queryParams = p
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.APIRequestsResult{
		Metadata: konnect.APIRequestsMetadata{TotalRequests: 1, TimeRange: p.TimeRange},
		Requests: []konnect.APIRequest{{RequestID: "r1", HTTPMethod: "GET", URI: "/orders", StatusCode: "200"}},
	}, nil
}

func (f *fakeAPI) GetConsumerRequests(_ context.Context, p konnect.ConsumerRequestsParams) (*konnect.ConsumerRequestsResult, error) {
	f.record("get_consumer_requests")
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.ConsumerRequestsResult{Metadata: konnect.APIRequestsMetadata{TimeRange: p.TimeRange}}, nil
}

func (f *fakeAPI) list(ctx context.Context, name string, kind konnect.EntityKind, p konnect.EntityListParams) (*konnect.EntityList, error) {
	f.record(name)
	f.mu.Lock()
	f.entityParams = p
	f.spanCtx = trace.SpanContextFromContext(ctx)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.EntityList{
		Kind:     kind,
		Metadata: konnect.EntityListMetadata{ControlPlaneID: p.ControlPlaneID, Size: p.Size, Count: 1},
		Items:    []map[string]any{{"id": "svc-1", "name": "orders"}},
	}, nil
}

func (f *fakeAPI) ListServices(ctx context.Context, p konnect.EntityListParams) (*konnect.EntityList, error) {
	return f.list(ctx, "list_services", konnect.KindServices, p)
}

func (f *fakeAPI) ListRoutes(ctx context.Context, p konnect.EntityListParams) (*konnect.EntityList, error) {
	return f.list(ctx, "list_routes", konnect.KindRoutes, p)
}

func (f *fakeAPI) ListConsumers(ctx context.Context, p konnect.EntityListParams) (*konnect.EntityList, error) {
	return f.list(ctx, "list_consumers", konnect.KindConsumers, p)
}

func (f *fakeAPI) ListPlugins(ctx context.Context, p konnect.EntityListParams) (*konnect.EntityList, error) {
	return f.list(ctx, "list_plugins", konnect.KindPlugins, p)
}

func (f *fakeAPI) ListControlPlanes(_ context.Context, p konnect.ListControlPlanesParams) (*konnect.ControlPlaneList, error) {
	f.record("list_control_planes")
	f.mu.Lock()
	f.cpParams = p
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.ControlPlaneList{ControlPlanes: []map[string]any{{"id": "cp1"}}}, nil
}

func (f *fakeAPI) GetControlPlane(_ context.Context, id string) (*konnect.ControlPlaneDetails, error) {
	f.record("get_control_plane")
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.ControlPlaneDetails{ControlPlane: map[string]any{"id": id}}, nil
}

func (f *fakeAPI) ListControlPlaneGroupMemberships(_ context.Context, p konnect.GroupMembershipsParams) (*konnect.GroupMemberships, error) {
	f.record("list_control_plane_group_memberships")
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.GroupMemberships{GroupID: p.GroupID, Members: []map[string]any{}}, nil
}

func (f *fakeAPI) CheckControlPlaneGroupMembership(_ context.Context, id string) (*konnect.GroupMembershipStatus, error) {
	f.record("check_control_plane_group_membership")
	if f.err != nil {
		return nil, f.err
	}
	return &konnect.GroupMembershipStatus{ControlPlaneID: id, IsMember: true}, nil
}

var _ konnect.API = (*fakeAPI)(nil)

// newTestServer builds a Server around api with default config.
func newTestServer(t *testing.T, api konnect.API) *Server {
	t.Helper()
	srv, err := NewServer(DefaultConfig(), api)
	require.NoError(t, err)
	return srv
}

// rpc is a JSON-RPC message body for tests.
func rpc(id interface{}, method string, params interface{}) []byte {
	msg := map[string]interface{}{"jsonrpc": "2.0", "method": method}
	if id != nil {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}
	data, _ := json.Marshal(msg)
	return data
}

func initializeBody(id interface{}) []byte {
	return rpc(id, MethodInitialize, map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "test-client", "version": "0.1"},
	})
}

// do sends one request through h from a loopback address.
func do(h http.Handler, method, sessionID string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/mcp", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// initSession runs the initialize handshake and returns the session ID.
func initSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(h, http.MethodPost, "", initializeBody(1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := rec.Header().Get(HeaderSessionID)
	require.NotEmpty(t, id)

	rec = do(h, http.MethodPost, id, rpc(nil, MethodInitialized, nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	return id
}

// decodeResponse parses a JSON-RPC response body.
func decodeResponse(t *testing.T, body []byte) *JSONRPCResponse {
	t.Helper()
	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return &resp
}

// decodeToolResult extracts the ToolResult of a tools/call response.
func decodeToolResult(t *testing.T, body []byte) *ToolResult {
	t.Helper()
	var resp struct {
		Result *ToolResult   `json:"result"`
		Error  *JSONRPCError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Content, 1)
	return resp.Result
}
