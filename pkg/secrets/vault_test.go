package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/retry"
)

func testConfig(addr string) VaultConfig {
	return VaultConfig{
		Enabled:   true,
		Addr:      addr,
		Token:     "root",
		Mount:     "secret",
		Path:      "facility-maintenance/api",
		KVVersion: 2,
		Timeout:   time.Second,
		Retry: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      2 * time.Millisecond,
			BackoffFactor: 2,
		},
	}
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_Incomplete(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault"})
	assert.Error(t, err)
}

func TestApplyVaultSecrets_KVv2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/facility-maintenance/api", r.URL.Path)
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"FM_TEST_RESEND_KEY":"re_123","FM_TEST_POLL_ATTEMPTS":7,"FM_TEST_EXISTING":"vault"}}}`))
	}))
	defer server.Close()

	t.Setenv("FM_TEST_RESEND_KEY", "")
	t.Setenv("FM_TEST_POLL_ATTEMPTS", "")
	t.Setenv("FM_TEST_EXISTING", "local")

	result, err := ApplyVaultSecrets(context.Background(), testConfig(server.URL))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "re_123", os.Getenv("FM_TEST_RESEND_KEY"))
	assert.Equal(t, "7", os.Getenv("FM_TEST_POLL_ATTEMPTS"))
	assert.Equal(t, "local", os.Getenv("FM_TEST_EXISTING"))
}

func TestApplyVaultSecrets_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"data":{"FM_TEST_RETRIED":"yes"}}}`))
	}))
	defer server.Close()

	t.Setenv("FM_TEST_RETRIED", "")

	result, err := ApplyVaultSecrets(context.Background(), testConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestApplyVaultSecrets_ForbiddenIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
	}))
	defer server.Close()

	_, err := ApplyVaultSecrets(context.Background(), testConfig(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "/secret/", "/app", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/app", url)

	url, err = buildVaultURL("http://vault:8200", "secret", "app", 2)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/data/app", url)

	_, err = buildVaultURL("", "secret", "app", 2)
	assert.Error(t, err)
}
