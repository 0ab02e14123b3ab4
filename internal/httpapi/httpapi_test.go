package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsr-assistant/hsrdriver/internal/supervisor"
)

type controllerFunc func(ctx context.Context, action string, runConfig json.RawMessage) (string, error)

func (f controllerFunc) Call(ctx context.Context, action string, runConfig json.RawMessage) (string, error) {
	return f(ctx, action, runConfig)
}

func newServer(t *testing.T, f controllerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(f, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/action", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestDefinition(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/definition")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out struct {
		Data struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"input_schema"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "hsr_assistant", out.Data.Name)
	assert.NotEmpty(t, out.Data.Description)
	assert.Equal(t, "object", out.Data.InputSchema["type"])
	assert.Contains(t, out.Data.InputSchema["properties"], "run_config")
}

func TestAction_Run(t *testing.T) {
	var gotAction, gotConfig string
	srv := newServer(t, func(_ context.Context, action string, runConfig json.RawMessage) (string, error) {
		gotAction, gotConfig = action, string(runConfig)
		return "Logs:\n\nok\n", nil
	})

	status, out := post(t, srv, `{"action":"run","run_config":{"task":"claim_reward","claim_reward_config":{"type":"每日实训"}}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logs:\n\nok\n", out["data"])
	assert.Equal(t, "run", gotAction)
	assert.JSONEq(t, `{"task":"claim_reward","claim_reward_config":{"type":"每日实训"}}`, gotConfig)
}

func TestAction_Unprocessable(t *testing.T) {
	cases := map[string]error{
		"missing run_config": supervisor.ErrRunConfigMissing,
		"unknown action":     fmt.Errorf("%w: %q", supervisor.ErrUnknownAction, "dance"),
	}
	for name, callErr := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(context.Context, string, json.RawMessage) (string, error) {
				return "", callErr
			})
			status, out := post(t, srv, `{"action":"run"}`)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assert.Equal(t, callErr.Error(), out["error"])
		})
	}
}

func TestAction_MalformedBody(t *testing.T) {
	called := false
	srv := newServer(t, func(context.Context, string, json.RawMessage) (string, error) {
		called = true
		return "", nil
	})

	status, out := post(t, srv, `{"action":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["error"], "invalid request body")
	assert.False(t, called)
}

func TestAction_InternalError(t *testing.T) {
	srv := newServer(t, func(context.Context, string, json.RawMessage) (string, error) {
		return "", errors.New("boom")
	})

	status, out := post(t, srv, `{"action":"wait"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "boom", out["error"])
}

func TestAction_ContextErrorIsInternal(t *testing.T) {
	srv := newServer(t, func(context.Context, string, json.RawMessage) (string, error) {
		return "", context.Canceled
	})

	status, out := post(t, srv, `{"action":"wait"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, context.Canceled.Error(), out["error"])
}

func TestAction_Panic(t *testing.T) {
	srv := newServer(t, func(context.Context, string, json.RawMessage) (string, error) {
		panic("controller exploded")
	})

	status, out := post(t, srv, `{"action":"stop"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "controller exploded", out["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/action")
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
