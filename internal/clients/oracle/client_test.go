package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		if strings.HasSuffix(r.URL.Path, "/v1/embeddings") {
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.25]}]}`))
			return
		}
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) Oracle {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{BaseURL: baseURL, APIKey: "k", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestCompareParsesBothDirections(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"scoreForA":81,"scoreForB":40,"shortTextForA":"You both climb.","shortTextForB":"Likes coffee.","longTextForA":"a","longTextForB":"b"}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Compare(context.Background(), CompareRequest{A: Side{DisplayName: "A", Descriptor: "x"}, B: Side{DisplayName: "B", Descriptor: "y"}})
	require.NoError(t, err)
	require.Equal(t, 81, res.ForA.Score)
	require.Equal(t, 40, res.ForB.Score)
	require.Equal(t, "You both climb.", res.ForA.Snippet)
}

func TestCompareRejectsOutOfRangeScore(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"scoreForA":180,"scoreForB":40,"shortTextForA":"","shortTextForB":"","longTextForA":"","longTextForB":""}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Compare(context.Background(), CompareRequest{})
	require.Error(t, err)
	require.True(t, apperrors.IsOracle(err))
}

func TestCompareRejectsMissingScore(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"scoreForB":40}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Compare(context.Background(), CompareRequest{})
	require.True(t, apperrors.IsOracle(err))
}

func TestCompareNonSuccessIsOracleError(t *testing.T) {
	srv := chatServer(t, http.StatusBadRequest, "")
	c := newTestClient(t, srv.URL)

	_, err := c.Compare(context.Background(), CompareRequest{})
	require.True(t, apperrors.IsOracle(err))
	var oe *apperrors.OracleError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, http.StatusBadRequest, oe.Status)
}

func TestEmbed(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "")
	c := newTestClient(t, srv.URL)

	vec, err := c.Embed(context.Background(), "climber")
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(logger.Nop(), Config{})
	require.Error(t, err)
}

func TestClipSnippet(t *testing.T) {
	long := strings.Repeat("é", MaxSnippetLen+20)
	require.Len(t, []rune(clip(long, MaxSnippetLen)), MaxSnippetLen)
}

func TestCompareRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"scoreForA":10,"scoreForB":20,"shortTextForA":"a","shortTextForB":"b"}`}}},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(logger.Nop(), Config{BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second, MaxRetries: 1})
	require.NoError(t, err)
	res, err := c.Compare(context.Background(), CompareRequest{})
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 20, res.ForB.Score)
}

func TestRetriesSpendRateGateTokens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(logger.Nop(), Config{
		BaseURL:    srv.URL,
		APIKey:     "k",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Gate:       NewRateGate(1, time.Hour),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	_, err = c.Compare(ctx, CompareRequest{})
	require.Error(t, err)
	require.True(t, apperrors.IsOracle(err))
	require.Equal(t, int32(1), calls.Load(), "a retry must wait for a fresh token")
}
