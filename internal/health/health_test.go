// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.2.3")

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)

	m.RegisterChecker(&mockChecker{name: "db", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "beat", status: StatusDegraded})

	resp = m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status, "liveness skips checks unless verbose")
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusHealthy, resp.Checks["db"].Status)
	assert.Equal(t, StatusDegraded, resp.Checks["beat"].Status)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []Status
		want      Status
		wantReady bool
	}{
		{"no checkers", nil, StatusHealthy, true},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy, true},
		{"degraded beat", []Status{StatusHealthy, StatusDegraded}, StatusDegraded, true},
		{"broker down", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for i, st := range tt.statuses {
				m.RegisterChecker(&mockChecker{name: string(rune('a' + i)), status: st})
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Len(t, resp.Checks, len(tt.statuses))
		})
	}
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "db", status: StatusUnhealthy})

	for target, wantChecks := range map[string]int{"/healthz": 0, "/healthz?verbose=true": 1} {
		w := httptest.NewRecorder()
		m.ServeHealth(w, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.Checks, wantChecks, target)
	}
}

func TestManager_ServeReady(t *testing.T) {
	for status, wantCode := range map[Status]int{
		StatusHealthy:   http.StatusOK,
		StatusDegraded:  http.StatusOK,
		StatusUnhealthy: http.StatusServiceUnavailable,
	} {
		m := NewManager("v1.0.0")
		m.RegisterChecker(&mockChecker{name: "cache", status: status})

		w := httptest.NewRecorder()
		m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, wantCode, w.Code, status)

		var resp ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, wantCode == http.StatusOK, resp.Ready)
		assert.Equal(t, status, resp.Checks["cache"].Status)
	}
}

func TestManager_EncodingErrorIsLogged(t *testing.T) {
	m := NewManager("v1.0.0")
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.NotPanics(t, func() {
		m.ServeHealth(&brokenWriter{header: make(http.Header)}, req)
		m.ServeReady(&brokenWriter{header: make(http.Header)}, req)
	})
}

func TestManager_ChecksRunConcurrently(t *testing.T) {
	m := NewManager("v1.0.0")
	m.timeout = time.Second
	release := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)
	for _, name := range []string{"db", "cache"} {
		m.RegisterChecker(NewPingChecker(name, func(context.Context) error {
			arrived.Done()
			<-release
			return nil
		}))
	}
	go func() {
		arrived.Wait()
		close(release)
	}()

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
}

func TestManager_CheckTimeout(t *testing.T) {
	m := NewManager("v1.0.0")
	m.timeout = 20 * time.Millisecond
	m.RegisterChecker(NewPingChecker("broker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks["broker"].Error, "deadline exceeded")
}

func TestPingChecker(t *testing.T) {
	tests := []struct {
		name           string
		ping           func(context.Context) error
		expectedStatus Status
		expectedError  string
	}{
		{
			name:           "nil probe",
			ping:           nil,
			expectedStatus: StatusHealthy,
		},
		{
			name:           "reachable",
			ping:           func(context.Context) error { return nil },
			expectedStatus: StatusHealthy,
		},
		{
			name:           "unreachable",
			ping:           func(context.Context) error { return errors.New("dial tcp 127.0.0.1:6379: connection refused") },
			expectedStatus: StatusUnhealthy,
			expectedError:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewPingChecker("cache", tt.ping)
			assert.Equal(t, "cache", checker.Name())

			result := checker.Check(context.Background())
			assert.Equal(t, tt.expectedStatus, result.Status)
			assert.Contains(t, result.Error, tt.expectedError)
		})
	}
}

func TestDirChecker(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T) string
		expectedStatus Status
		expectedError  string
	}{
		{
			name:           "empty path",
			setup:          func(*testing.T) string { return "" },
			expectedStatus: StatusHealthy,
		},
		{
			name:           "writable directory",
			setup:          func(t *testing.T) string { return t.TempDir() },
			expectedStatus: StatusHealthy,
		},
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "media")
			},
			expectedStatus: StatusUnhealthy,
			expectedError:  "does not exist",
		},
		{
			name: "regular file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "media")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
				return path
			},
			expectedStatus: StatusUnhealthy,
			expectedError:  "not a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			checker := NewDirChecker("media_root", path)
			assert.Equal(t, "media_root", checker.Name())

			result := checker.Check(context.Background())
			assert.Equal(t, tt.expectedStatus, result.Status)
			assert.Contains(t, result.Error, tt.expectedError)

			if path != "" && tt.expectedStatus == StatusHealthy {
				entries, err := os.ReadDir(path)
				require.NoError(t, err)
				assert.Empty(t, entries, "probe file must be removed")
			}
		})
	}
}

func TestLastRunChecker(t *testing.T) {
	tests := []struct {
		name           string
		lastRun        time.Time
		lastError      string
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "never run",
			expectedStatus: StatusDegraded,
			expectedMsg:    "no run yet",
		},
		{
			name:           "recent success",
			lastRun:        time.Now().Add(-time.Hour),
			expectedStatus: StatusHealthy,
			expectedMsg:    "successful",
		},
		{
			name:           "stale success",
			lastRun:        time.Now().Add(-72 * time.Hour),
			expectedStatus: StatusDegraded,
			expectedMsg:    "stale",
		},
		{
			name:           "failed run",
			lastRun:        time.Now(),
			lastError:      "redis: connection refused",
			expectedStatus: StatusUnhealthy,
			expectedMsg:    "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewLastRunChecker("beat", 48*time.Hour, func() (time.Time, string) {
				return tt.lastRun, tt.lastError
			})
			assert.Equal(t, "beat", checker.Name())

			result := checker.Check(context.Background())
			assert.Equal(t, tt.expectedStatus, result.Status)
			assert.Contains(t, result.Message, tt.expectedMsg)
		})
	}
}

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

// brokenWriter fails every body write.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func (w *brokenWriter) WriteHeader(int) {}
