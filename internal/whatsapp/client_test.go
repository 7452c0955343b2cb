package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:       server.URL + "/",
		APIVersion:    "v19.0",
		PhoneNumberID: "1234567890",
		AccessToken:   "test-token",
		Timeout:       time.Second,
	}, nil, nil)
}

func TestClient_SendTemplate(t *testing.T) {
	var received map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v19.0/1234567890/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"254700000001","wa_id":"254700000001"}],"messages":[{"id":"wamid.HBgM"}]}`))
	})

	result, err := client.SendTemplate(context.Background(), "+254 700 000 001", TemplatePayload{
		Name:     "spring_promo",
		Language: Language{Code: "en_US"},
		Components: []Component{
			{Type: ComponentTypeBody, Parameters: []Parameter{{Type: ParameterTypeText, Text: "Ann"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.HBgM", result.MessageID())

	assert.Equal(t, "whatsapp", received["messaging_product"])
	assert.Equal(t, "254700000001", received["to"])
	assert.Equal(t, "template", received["type"])

	template := received["template"].(map[string]interface{})
	assert.Equal(t, "spring_promo", template["name"])
	assert.Equal(t, map[string]interface{}{"code": "en_US"}, template["language"])
}

func TestClient_SendText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var msg messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "text", msg.Type)
		require.NotNil(t, msg.Text)
		assert.Equal(t, "Hi Ann", msg.Text.Body)
		assert.Nil(t, msg.Template)

		w.Write([]byte(`{"messages":[{"id":"wamid.TXT"}]}`))
	})

	result, err := client.SendText(context.Background(), "254700000001", "Hi Ann")
	require.NoError(t, err)
	assert.Equal(t, "wamid.TXT", result.MessageID())
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"(#131030) Recipient phone number not in allowed list","type":"OAuthException","code":131030,"fbtrace_id":"AbC"}}`))
	})

	_, err := client.SendTemplate(context.Background(), "254700000001", TemplatePayload{Name: "x", Language: Language{Code: "en_US"}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 131030, apiErr.Code)
	assert.Contains(t, err.Error(), "Recipient phone number not in allowed list")
}

func TestClient_APIError_PlainBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable\n"))
	})

	_, err := client.SendText(context.Background(), "254700000001", "hello")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestClient_EmptyRecipient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.SendText(context.Background(), "+", "hello")
	assert.ErrorContains(t, err, "recipient phone number is empty")
}

func TestSendResult_MessageID(t *testing.T) {
	var nilResult *SendResult
	assert.Equal(t, "", nilResult.MessageID())
	assert.Equal(t, "", (&SendResult{}).MessageID())
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	header := Sign("s3cret", body)

	assert.True(t, VerifySignature("s3cret", body, header))
	assert.True(t, VerifySignature("s3cret", body, "  "+header+" "))
	assert.False(t, VerifySignature("other", body, header))
	assert.False(t, VerifySignature("s3cret", []byte(`{}`), header))
	assert.False(t, VerifySignature("s3cret", body, "sha1=abcd"))
	assert.False(t, VerifySignature("s3cret", body, "sha256=zz"))
	assert.False(t, VerifySignature("", body, header))
}
