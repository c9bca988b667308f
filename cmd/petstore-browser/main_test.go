package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/petstore-browser/internal/config"
	"github.com/Sternrassler/petstore-browser/internal/testutil"
)

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petstore.yml")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init-config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output = %q, want path", out.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"init-config", path})
	if err := cmd.Execute(); err == nil {
		t.Error("second init-config error = nil, want already exists")
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petstore.yml")
	if err := os.WriteFile(path, []byte("probe-timeout: 30s\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid probe-timeout") {
		t.Errorf("Execute() error = %v, want probe-timeout validation error", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	mock := testutil.NewMockPetstore()
	defer mock.Close()
	mock.SetResponse("available", testutil.NewPetsResponse(`[{"id":1,"name":"Rex","status":"available"}]`))

	cfg := config.Default()
	cfg.BaseURL = mock.URL()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.ProbeTimeout = 2 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	// The initial load reaches the catalog, or the cycle short-circuits when
	// the host reports no network; either way run must keep going.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestRun_BadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.RedisURL = "not-a-redis-url"
	cfg.ListenAddr = "127.0.0.1:0"

	if err := run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "parse redis-url") {
		t.Errorf("run() error = %v, want parse redis-url error", err)
	}
}
