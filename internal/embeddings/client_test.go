package embeddings

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "no socket path or base url",
			config:  Config{Model: "test-model"},
			wantErr: true,
		},
		{
			name:    "empty model",
			config:  Config{SocketPath: "/tmp/test.sock", Model: ""},
			wantErr: true,
		},
		{
			name:    "socket config",
			config:  Config{SocketPath: "/tmp/test.sock", Model: "test-model"},
			wantErr: false,
		},
		{
			name:    "base url config",
			config:  Config{BaseURL: "http://localhost:8080/v1", Model: "test-model"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"ai/all-minilm", 384},
		{"ai/embeddinggemma", 768},
		{"ai/snowflake-arctic-embed", 1024},
		{"unknown-model", 384}, // default
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, Dimensions(tt.model))
		})
	}
}

// serveUnix starts handler on a unix socket and returns its path.
func serveUnix(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "test.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err, "failed to create unix socket")

	server := &http.Server{Handler: handler}
	go server.Serve(listener)
	t.Cleanup(func() { server.Close() })
	return socketPath
}

func mockResponse(vecs ...[]float32) embeddingResponse {
	var resp embeddingResponse
	for i, v := range vecs {
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: i, Embedding: v})
	}
	return resp
}

func TestEmbed_Success(t *testing.T) {
	mockEmbedding := []float32{0.1, 0.2, 0.3, 0.4, 0.5}

	socketPath := serveUnix(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResponse(mockEmbedding))
	})

	client, err := New(Config{SocketPath: socketPath, Model: "test-model"})
	require.NoError(t, err)

	embedding, err := client.Embed(context.Background(), "test text")
	require.NoError(t, err)
	assert.Equal(t, mockEmbedding, embedding)
}

func TestEmbedBatch_BaseURLOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Input, 2)

		// Out of order on purpose.
		resp := mockResponse([]float32{1}, []float32{2})
		resp.Data[0], resp.Data[1] = resp.Data[1], resp.Data[0]
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL + "/v1/", APIKey: "secret", Model: "m"})
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestEmbed_ServerError(t *testing.T) {
	socketPath := serveUnix(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	})

	client, err := New(Config{SocketPath: socketPath, Model: "test-model"})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "test text")
	assert.Error(t, err, "expected error for server error response")
}

func TestEmbed_EmptyResponse(t *testing.T) {
	socketPath := serveUnix(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embeddingResponse{})
	})

	client, err := New(Config{SocketPath: socketPath, Model: "test-model"})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "test text")
	assert.Error(t, err, "expected error for empty response")
}

// Skip integration test if DMR is not available
func TestEmbed_Integration(t *testing.T) {
	socketPath := os.Getenv("DOCKER_SOCKET")
	if socketPath == "" {
		socketPath = os.ExpandEnv("$HOME/.docker/run/docker.sock")
	}

	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Skip("Docker socket not available, skipping integration test")
	}

	client, err := New(Config{SocketPath: socketPath, Model: "ai/all-minilm"})
	require.NoError(t, err)

	embedding, err := client.Embed(context.Background(), "Hello, this is a test")
	if err != nil {
		t.Skipf("DMR not available or model not pulled: %v", err)
	}
	assert.Len(t, embedding, 384)
}
