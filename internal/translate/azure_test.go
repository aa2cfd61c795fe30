package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAzureTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "3.0", r.URL.Query().Get("api-version"))
		assert.Equal(t, "en", r.URL.Query().Get("from"))
		assert.Equal(t, "pt", r.URL.Query().Get("to"))
		assert.Equal(t, "html", r.URL.Query().Get("textType"))
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "westeurope", r.Header.Get("Ocp-Apim-Subscription-Region"))
		_, err := uuid.Parse(r.Header.Get("X-ClientTraceId"))
		assert.NoError(t, err)

		var body []map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 2)
		assert.Equal(t, "<p>Hi</p>", body[0]["Text"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"translations":[{"text":"<p>Oi</p>","to":"pt"}]},{"translations":[{"text":"<p>Tchau</p>","to":"pt"}]}]`))
	}))
	defer srv.Close()

	p := NewAzureProvider(AzureConfig{BaseURL: srv.URL, Key: "secret", Region: "westeurope"}, srv.Client())
	got, err := p.Translate(context.Background(), []string{"<p>Hi</p>", "<p>Bye</p>"}, "en", "pt", FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, []string{"<p>Oi</p>", "<p>Tchau</p>"}, got)
}

func TestAzureBreakSentences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/breaksentence", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		w.Write([]byte(`[{"sentLen":[13,11]}]`))
	}))
	defer srv.Close()

	p := NewAzureProvider(AzureConfig{BaseURL: srv.URL + "/", Key: "k"}, srv.Client())
	got, err := p.BreakSentences(context.Background(), "Hello there. How are you", "en")
	require.NoError(t, err)
	assert.Equal(t, []int{13, 11}, got)
}

func TestAzureErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401000,"message":"invalid key"}}`))
	}))
	defer srv.Close()

	p := NewAzureProvider(AzureConfig{BaseURL: srv.URL}, srv.Client())
	_, err := p.Translate(context.Background(), []string{"x"}, "en", "pt", FormatPlain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
	assert.Contains(t, err.Error(), "401")
}

func TestAzureMismatchedResultCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"translations":[{"text":"um"}]}]`))
	}))
	defer srv.Close()

	p := NewAzureProvider(AzureConfig{BaseURL: srv.URL}, srv.Client())
	_, err := p.Translate(context.Background(), []string{"one", "two"}, "en", "pt", FormatPlain)
	assert.Error(t, err)
}
