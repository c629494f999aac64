package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/indexer"
	"github.com/fyrsmithlabs/findex/internal/vectorstore"
)

// testEmbedder is a deterministic bag-of-words embedder.
type testEmbedder struct{}

const testEmbedderDim = 64

func (testEmbedder) embed(text string) []float32 {
	vec := make([]float32, testEmbedderDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%testEmbedderDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func (e testEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e testEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (testEmbedder) Dimension() int {
	return testEmbedderDim
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	provider := vectorstore.NewProvider(vectorstore.FactoryConfig{
		Chromem: vectorstore.ChromemConfig{Path: t.TempDir()},
	}, testEmbedder{}, zap.NewNop())
	t.Cleanup(func() { _ = provider.Close() })

	srv, err := NewServer(provider, zap.NewNop(), &Config{
		Host:              "localhost",
		Port:              0,
		DefaultCollection: "file_names",
		Version:           "test",
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		content, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(content)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIndex_RequiresDirectory(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndex_MissingDirectory(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{
		Directory: filepath.Join(t.TempDir(), "nope"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_RequiresQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_InvalidCollection(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{
		Collection: "Not-Valid",
		Query:      "anything",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFile_UnknownID(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/files/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexSearchOpen_EndToEnd(t *testing.T) {
	srv := newTestServer(t)

	root := t.TempDir()
	files := map[string]string{
		"report.pdf": "quarterly numbers",
		"notes.txt":  "meeting notes",
		"image.png":  "not really a png",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	// index
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{Directory: root})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var indexResp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &indexResp))
	assert.Equal(t, "file_names", indexResp.Collection)
	assert.Equal(t, 3, indexResp.FilesIndexed)

	// search
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{
		Query: "file name report.pdf extension pdf",
		Limit: 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var searchResp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searchResp))
	require.Len(t, searchResp.Hits, 3)
	best := searchResp.Hits[0]
	assert.Equal(t, "report.pdf", best.FileName)
	assert.Equal(t, indexer.RecordID("report.pdf"), best.ID)
	// distances ascend
	assert.LessOrEqual(t, best.Score, searchResp.Hits[1].Score)

	// fetch the file behind the hit
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/files/%s", best.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quarterly numbers", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")

	// stale path: delete the file, same id now 404s
	require.NoError(t, os.Remove(filepath.Join(root, "report.pdf")))
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/files/%s", best.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndex_NonDefaultCollection(t *testing.T) {
	srv := newTestServer(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{
		Directory:  root,
		Collection: "custom",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the default collection stays empty
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{Query: "a.txt"})
	require.Equal(t, http.StatusOK, rec.Code)
	var emptyResp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &emptyResp))
	assert.Empty(t, emptyResp.Hits)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{
		Query:      "a.txt",
		Collection: "custom",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "a.txt", resp.Hits[0].FileName)
}

func TestIndex_DefaultKeepsExistingRecords(t *testing.T) {
	srv := newTestServer(t)

	rootA := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "alpha.txt"), []byte("a"), 0o644))
	rootB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "beta.txt"), []byte("b"), 0o644))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{Directory: rootA})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// clear_first omitted: the second scan accumulates alongside the first
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{Directory: rootB})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var indexResp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &indexResp))
	assert.Equal(t, 0, indexResp.Cleared)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{
		Query: "file name alpha.txt beta.txt",
		Limit: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var searchResp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searchResp))
	require.Len(t, searchResp.Hits, 2)

	// explicit clear_first still wipes before indexing
	clear := true
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/index", IndexRequest{
		Directory:  rootB,
		ClearFirst: &clear,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &indexResp))
	assert.Equal(t, 2, indexResp.Cleared)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", SearchRequest{
		Query: "file name alpha.txt beta.txt",
		Limit: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searchResp))
	require.Len(t, searchResp.Hits, 1)
	assert.Equal(t, "beta.txt", searchResp.Hits[0].FileName)
}

func TestNewServer_RequiresProviderAndLogger(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), nil)
	require.Error(t, err)

	provider := vectorstore.NewProvider(vectorstore.FactoryConfig{
		Chromem: vectorstore.ChromemConfig{Path: t.TempDir()},
	}, testEmbedder{}, zap.NewNop())
	_, err = NewServer(provider, nil, nil)
	require.Error(t, err)
}
