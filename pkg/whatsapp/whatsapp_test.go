package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:       server.URL,
		AccessToken:   "token-123",
		PhoneNumberID: "555000111",
	}, WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client
}

func TestSendText(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotPayload map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"messages":[{"id":"wamid.abc"}]}`)
	})

	id, err := client.SendText(context.Background(), "56911112222", "hola Ana")
	require.NoError(t, err)
	assert.Equal(t, "wamid.abc", id)
	assert.Equal(t, "/555000111/messages", gotPath)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "whatsapp", gotPayload["messaging_product"])
	assert.Equal(t, "56911112222", gotPayload["to"])
	assert.Equal(t, map[string]any{"body": "hola Ana"}, gotPayload["text"])
}

func TestSendTextGraphError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Recipient outside allowed window","type":"OAuthException","code":131047}}`)
	})

	_, err := client.SendText(context.Background(), "56911112222", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "131047")
	assert.Contains(t, err.Error(), "Recipient outside allowed window")
}

func TestSendTemplateDefaultsLanguage(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"messages":[{"id":"wamid.tpl"}]}`)
	})

	id, err := client.SendTemplate(context.Background(), "56911112222", "resumen_diario", "", []string{"Ana", "3"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.tpl", id)

	tpl, ok := gotPayload["template"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "resumen_diario", tpl["name"])
	assert.Equal(t, map[string]any{"code": "es_CL"}, tpl["language"])

	components, ok := tpl["components"].([]any)
	require.True(t, ok)
	require.Len(t, components, 1)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{BaseURL: "https://example.test"})
	require.Error(t, err)
}
