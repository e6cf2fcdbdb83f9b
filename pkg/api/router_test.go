package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrid/assetcache/pkg/api"
	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/engine/memory"
	"github.com/cachegrid/assetcache/pkg/key"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := memory.New()
	require.NoError(t, eng.Init(context.Background(), engine.Options{}))
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	srv := httptest.NewServer(api.NewRouter(eng))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouterUploadCommitAndRead(t *testing.T) {
	srv := newTestServer(t)
	guid := key.NewGUID()
	var hash key.Hash

	base := srv.URL + "/v1/" + guid.String() + "/" + hash.String()

	req, err := http.NewRequest(http.MethodPost, base+"/i", strings.NewReader("info-bytes"))
	require.NoError(t, err)
	req.ContentLength = int64(len("info-bytes"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(base+"/commit", "application/octet-stream", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base + "/i")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "info-bytes", string(body))
}

func TestRouterGetMissingVersionReturns404(t *testing.T) {
	srv := newTestServer(t)
	guid := key.NewGUID()
	var hash key.Hash

	resp, err := http.Get(srv.URL + "/v1/" + guid.String() + "/" + hash.String() + "/i")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouterEvict(t *testing.T) {
	srv := newTestServer(t)
	guid := key.NewGUID()
	var hash key.Hash
	base := srv.URL + "/v1/" + guid.String() + "/" + hash.String()

	req, _ := http.NewRequest(http.MethodPost, base+"/a", strings.NewReader("x"))
	req.ContentLength = 1
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(base+"/commit", "application/octet-stream", nil)
	require.NoError(t, err)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodDelete, base, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base + "/a")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRouterHealthAndStats(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
