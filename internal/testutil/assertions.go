package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors the JSON shape every endpoint responds with
type Envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`

	Raw []byte `json:"-"`
}

// DecodeEnvelope reads and decodes the response body
func DecodeEnvelope(t *testing.T, resp *http.Response) *Envelope {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), "failed to unmarshal response: %s", string(body))
	env.Raw = body
	return &env
}

// DecodeData decodes the envelope's data payload into v
func (e *Envelope) DecodeData(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, v), "failed to unmarshal data: %s", string(e.Data))
}

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertErrorResponse verifies the failure envelope's status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) *Envelope {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	env := DecodeEnvelope(t, resp)
	assert.Equal(t, expectedStatus, env.StatusCode)
	assert.False(t, env.Success)
	assert.NotNil(t, env.Errors, "errors must be present on failures")
	assert.Contains(t, env.Message, expectedMessage, "error message mismatch")
	return env
}

// AssertNoCredentials verifies a payload carries neither password nor stored token fields
func AssertNoCredentials(t *testing.T, payload []byte) {
	t.Helper()

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	for _, key := range []string{"password", "passwordHash", "refreshToken"} {
		assert.NotContains(t, fields, key, "payload must not expose %s", key)
	}
}
