package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/CAcquaviva/mcp-konnect/pkg/config"
	"github.com/CAcquaviva/mcp-konnect/pkg/logging"
	"github.com/CAcquaviva/mcp-konnect/pkg/mcp"
)

// run executes the command tree with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestToolsCommand_Table(t *testing.T) {
	out, err := run(t, "tools")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "query_api_requests"))
	assert.Contains(t, out, "check_control_plane_group_membership")
}

func TestToolsCommand_JSON(t *testing.T) {
	out, err := run(t, "tools", "--output", "json")
	require.NoError(t, err)

	var tools []mcp.ToolDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &tools))
	require.Len(t, tools, 10)
	assert.Equal(t, "list_services", tools[2].Name)
	assert.Equal(t, "object", tools[2].InputSchema["type"])
}

func TestToolsCommand_YAML(t *testing.T) {
	out, err := run(t, "tools", "-o", "yaml")
	require.NoError(t, err)

	var tools []mcp.ToolDefinition
	require.NoError(t, yaml.Unmarshal([]byte(out), &tools))
	require.Len(t, tools, 10)
	assert.Equal(t, "get_control_plane", tools[7].Name)
	assert.NotEmpty(t, tools[7].InputSchema)
}

func TestToolsCommand_UnknownFormat(t *testing.T) {
	_, err := run(t, "tools", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "konnect-mcp ")
	assert.Contains(t, out, "MCP protocol "+mcp.ProtocolVersion)

	out, err = run(t, "version", "--output", "json")
	require.NoError(t, err)
	var v VersionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, mcp.ProtocolVersion, v.ProtocolVersion)
	assert.NotEmpty(t, v.Go)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "First line.", summary("\n  First line.\nSecond line."))
	assert.Equal(t, "", summary(""))
}

func TestRootCommand_UnknownRegion(t *testing.T) {
	_, err := run(t, "serve", "--region", "mars")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown Konnect region")
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	_, err := run(t, "extra")
	assert.Error(t, err)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MCP_PORT", "4000")
	t.Setenv("KONNECT_REGION", "eu")
	t.Setenv("MCP_PATH", "/from-env")

	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "5000", "--base-url", "http://localhost:9000/"}))

	opts := &rootOptions{v: config.NewViper()}
	cfg, err := opts.loadConfig(cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "/from-env", cfg.Server.Path)
	assert.Equal(t, config.RegionEU, cfg.Konnect.Region)
	assert.Equal(t, "http://localhost:9000", cfg.KonnectBaseURL())
}

func TestMCPConfig(t *testing.T) {
	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)
	cfg.Server.Port = 4100
	cfg.Server.AllowRemote = true
	cfg.Server.MaxSessions = 7

	c := mcpConfig(cfg)
	assert.Equal(t, 4100, c.Port)
	assert.Equal(t, "/mcp", c.Path)
	assert.True(t, c.AllowRemote)
	assert.Equal(t, 7, c.MaxSessions)
	assert.Equal(t, 30*time.Minute, c.SessionTimeout)
	assert.NoError(t, c.Validate())
}

func TestServe_RunsUntilCancelled(t *testing.T) {
	var gotAuth atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"cp1","name":"default"}],"meta":{"page":{"number":1,"size":10,"total":1}}}`)
	}))
	defer upstream.Close()

	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)
	cfg.Konnect.AccessToken = "kpat_test"
	cfg.Konnect.BaseURL = upstream.URL
	cfg.Server.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, logging.Nop())
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	// Full round trip: initialize, then one tool call forwarded upstream.
	post := func(sessionID, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, base+"/mcp", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		if sessionID != "" {
			req.Header.Set(mcp.HeaderSessionID, sessionID)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post("", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"cli-test","version":"1"}}}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := resp.Header.Get(mcp.HeaderSessionID)
	require.NotEmpty(t, sessionID)

	resp = post(sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_control_planes","arguments":{}}}`)
	var rpcResp struct {
		Result mcp.ToolResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	resp.Body.Close()
	assert.False(t, rpcResp.Result.IsError, rpcResp.Result.Content)
	assert.Equal(t, "Bearer kpat_test", gotAuth.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port

	err = serve(context.Background(), cfg, logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start MCP server")
}
