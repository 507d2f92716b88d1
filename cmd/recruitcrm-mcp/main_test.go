package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recruitcrm-mcp/internal/config"
	"recruitcrm-mcp/internal/recruitcrm"
	"recruitcrm-mcp/internal/tools"
)

func TestServe_MissingCredentialAbortsBeforeListening(t *testing.T) {
	t.Setenv("RCRM_TOKEN", "")
	t.Setenv("RCRM_TOKEN_FILE", "")

	// grab a free port and keep it busy; a listen attempt would fail differently
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	root := newRootCmd()
	root.SetArgs([]string{"serve", "--port", strconv.Itoa(port)})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err = root.Execute()
	require.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Config{Token: "secret", Timeout: time.Second, Log: config.LogConfig{Format: "json"}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.NewNop(), ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestToolsCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"tools", "--category", "helpers"})
	root.SetOut(&out)
	require.NoError(t, root.Execute())

	var list []toolSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	require.NotEmpty(t, list)
	for _, s := range list {
		assert.Equal(t, tools.CategoryHelpers, s.Category)
	}
}

func TestPrintTools_All(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printTools(&out, tools.DefaultCatalog(), ""))

	var list []toolSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	assert.Len(t, list, tools.DefaultCatalog().Len())
	assert.Equal(t, "candidate_job_assignment_search", list[0].Name)
	assert.Equal(t, "albatross:/v1/reports/search/get", list[0].Endpoint)
}

func TestRouteTimeoutOutlastsOutboundCall(t *testing.T) {
	assert.Equal(t, 45*time.Second, routeTimeout(30*time.Second))
	assert.Equal(t, 135*time.Second, routeTimeout(2*time.Minute))
	assert.Greater(t, routeTimeout(0), recruitcrm.DefaultTimeout)
}
