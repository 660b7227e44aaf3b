package biometric

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hung6066/IVF-sub008/models"
)

func TestHTTPMatcherIdentify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/identify", r.URL.Path)

		var req identifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []byte("probe-template"), req.Template)

		json.NewEncoder(w).Encode(models.IdentificationResult{
			Match: true, PatientID: "p-77", Score: 4.5,
		})
	}))
	defer server.Close()

	matcher := NewHTTPMatcher("shard-0", server.URL, time.Second)
	result, err := matcher.Identify(context.Background(), []byte("probe-template"))
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Equal(t, "p-77", result.PatientID)
	assert.Equal(t, 4.5, result.Score)
}

func TestHTTPMatcherNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	matcher := NewHTTPMatcher("shard-0", server.URL, time.Second)
	_, err := matcher.Identify(context.Background(), []byte("probe"))
	assert.Error(t, err)
}

func TestHTTPMatcherMalformedResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	matcher := NewHTTPMatcher("shard-0", server.URL, time.Second)
	_, err := matcher.Identify(context.Background(), []byte("probe"))
	assert.Error(t, err)
}
