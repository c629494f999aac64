package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTEIServer returns a fake TEI server that echoes one fixed-size
// vector per input.
func newTEIServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		inputs, ok := req.Inputs.([]interface{})
		require.True(t, ok)

		out := make([][]float32, len(inputs))
		for i := range inputs {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			out[i] = vec
		}
		require.NoError(t, json.NewEncoder(w).Encode(out))
	}))
}

func TestNewService_RequiresBaseURL(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmbedDocuments(t *testing.T) {
	srv := newTEIServer(t, 4)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	vecs, err := svc.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 4)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	svc, err := NewService(Config{BaseURL: "http://localhost:0"})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedQuery(t *testing.T) {
	srv := newTEIServer(t, 4)
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	vec, err := svc.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedQuery_EmptyInput(t *testing.T) {
	svc, err := NewService(Config{BaseURL: "http://localhost:0"})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "503")
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// one vector for two inputs
		require.NoError(t, json.NewEncoder(w).Encode([][]float32{{1, 2}}))
	}))
	defer srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestEmbed_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("sentence-transformers/all-MiniLM-L6-v2"))
	assert.Equal(t, 768, detectDimensionFromModel("custom-base-model"))
	assert.Equal(t, 1024, detectDimensionFromModel("custom-large-model"))
	assert.Equal(t, 384, detectDimensionFromModel("something-else"))
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "openai"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_TEI(t *testing.T) {
	srv := newTEIServer(t, 4)
	defer srv.Close()

	p, err := NewProvider(ProviderConfig{
		Provider: "tei",
		Model:    "BAAI/bge-base-en-v1.5",
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 768, p.Dimension())

	vec, err := p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}
