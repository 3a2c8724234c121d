package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/application/container"
	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/presentation/http/routes"
)

type cliEnv struct {
	collector *container.CollectorContainer
	baseURL   string
	state     string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := container.NewCollectorContainer(container.CollectorSettings{RecentLimit: 100}, nil, logging.Discard())
	srv := httptest.NewServer(routes.SetupRoutes(c))
	t.Cleanup(srv.Close)
	return &cliEnv{
		collector: c,
		baseURL:   srv.URL + "/ingest",
		state:     filepath.Join(t.TempDir(), "state.db"),
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--key", "pk_cli",
		"--base-url", e.baseURL,
		"--state", e.state,
		"--output", "json",
		"--url", "https://shop.example.com/cart",
	}, args...))

	err := cmd.Execute()
	if out.Len() == 0 {
		return nil, err
	}
	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	return resp.Data, err
}

func (e *cliEnv) count(name string) int {
	n := 0
	for _, c := range e.collector.CaptureService.Recent(0) {
		if c.EventName == name {
			n++
		}
	}
	return n
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "zori-go", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"track"}, {"pageview"}, {"identify"}, {"consent", "show"}, {"consent", "set"},
		{"optout"}, {"session"}, {"collect"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "key", "base-url", "state", "log-level", "log-format", "output", "url", "dnt"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "o", cmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestInvalidOutputFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--output", "xml", "session"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatePersistsAcrossInvocations(t *testing.T) {
	env := newCLIEnv(t)

	first, err := env.run(t, "track", "add_to_cart", "--props", `{"sku":"A-1"}`)
	require.NoError(t, err)
	second, err := env.run(t, "pageview")
	require.NoError(t, err)
	session, err := env.run(t, "session")
	require.NoError(t, err)

	assert.Equal(t, first["visitor_id"], session["visitor_id"])
	assert.Equal(t, second["session_id"], session["session_id"])
	assert.Equal(t, true, session["active"])

	assert.Equal(t, 1, env.count(events.SessionStart), "one session across invocations")
	assert.Equal(t, 1, env.count("add_to_cart"))
	assert.Equal(t, 1, env.count(events.PageView))
}

func TestConsentDenialBlocksTracking(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "consent", "set", "--analytics=false")
	require.NoError(t, err)

	shown, err := env.run(t, "consent", "show")
	require.NoError(t, err)
	assert.Equal(t, "denied", shown["analytics"])
	assert.Equal(t, false, shown["tracking"])

	_, err = env.run(t, "track", "signup")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, 0, env.count("signup"))
}

func TestIdentifyAndEndSession(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "identify", "--email", "ada@example.com", "--props", `{"plan":"pro"}`)
	require.NoError(t, err)

	ended, err := env.run(t, "session", "--end")
	require.NoError(t, err)
	assert.Equal(t, true, ended["ended"])
	assert.Equal(t, 1, env.count(events.SessionEnd))

	var identifies int
	for _, c := range env.collector.CaptureService.Recent(0) {
		if c.Endpoint == events.EndpointIdentify {
			identifies++
		}
	}
	assert.Equal(t, 1, identifies)
}

func TestIdentifyRequiresFields(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "identify")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBadConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "zori.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: [unclosed"), 0o644))

	_, err := env.run(t, "--config", path, "session")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
