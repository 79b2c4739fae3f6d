package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers every chat completion with reply and the given status.
func chatServer(t *testing.T, status int, reply string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte("nope"))
			return
		}
		var resp chatResponse
		resp.Choices = make([]struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}, 1)
		resp.Choices[0].Message.Content = reply
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url + "/v1", Model: "test", FailureThreshold: 2})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"no transport", Config{Model: "m"}, true},
		{"no model", Config{SocketPath: "/tmp/x.sock"}, true},
		{"socket", Config{SocketPath: "/tmp/x.sock", Model: "m"}, false},
		{"base url", Config{BaseURL: "http://localhost:1234/v1", Model: "m"}, false},
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

func TestClassifyIntent_Success(t *testing.T) {
	reply := "Sure!\n```json\n{\"goal\":\"Build\",\"learning_stage\":\"beginner\",\"specific_technologies\":[\"react\"]}\n```"
	c := newTestClient(t, chatServer(t, http.StatusOK, reply, nil).URL)

	got, err := c.ClassifyIntent(context.Background(), "build a react app", &ProjectContext{Title: "Shop"})
	require.NoError(t, err)
	assert.Equal(t, "build", got.Goal)
	assert.Equal(t, "beginner", got.LearningStage)
	assert.Equal(t, []string{"react"}, got.SpecificTechnologies)
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		wantErr bool
	}{
		{"plain json", `{"goal":"learn"}`, false},
		{"no json", "I think they want to learn", true},
		{"broken json", `{"goal":`, true},
		{"unknown goal", `{"goal":"party"}`, true},
		{"empty goal", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClassification(tt.resp)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestBuildIntentPrompt_IncludesProject(t *testing.T) {
	p := buildIntentPrompt("speed up queries", &ProjectContext{
		Title:        "Billing",
		Description:  "invoices",
		Technologies: []string{"postgres", "go"},
	})
	for _, want := range []string{"speed up queries", "Title: Billing", "postgres, go"} {
		assert.Contains(t, p, want)
	}
	assert.NotContains(t, buildIntentPrompt("x", nil), "PROJECT CONTEXT")
}

func TestComplete_QuotaExceeded(t *testing.T) {
	c := newTestClient(t, chatServer(t, http.StatusTooManyRequests, "", nil).URL)

	_, err := c.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestComplete_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, chatServer(t, http.StatusInternalServerError, "", &calls).URL)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Complete(ctx, "hi")
		require.Error(t, err)
	}

	_, err := c.Complete(ctx, "hi")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", c.State())
}

func TestExplain(t *testing.T) {
	c := newTestClient(t, chatServer(t, http.StatusOK, `"Covers hooks you need for the dashboard."`, nil).URL)

	got, err := c.Explain(context.Background(), ExplainRequest{Title: "Hooks", UserRequest: "dashboard"})
	require.NoError(t, err)
	assert.Equal(t, "Covers hooks you need for the dashboard.", got)
}

func TestExplain_EmptyAnswer(t *testing.T) {
	c := newTestClient(t, chatServer(t, http.StatusOK, "  ", nil).URL)

	_, err := c.Explain(context.Background(), ExplainRequest{Title: "x"})
	assert.Error(t, err)
}
