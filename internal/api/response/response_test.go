package response_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfedhq/devboard/internal/api/response"
)

func TestJSON_WrapsInDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, map[string]string{"hello": "world"})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "world", body["data"]["hello"])
}

func TestAccepted(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Accepted(rec, map[string]string{"status": "started"})
	assert.Equal(t, 202, rec.Code)
}

func TestError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Error(rec, 404, "NOT_FOUND", "Task not found", map[string]string{"id": "abc"})

	assert.Equal(t, 404, rec.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "Task not found", body.Error.Message)
	assert.Equal(t, "abc", body.Error.Details["id"])
}

func TestError_OmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Error(rec, 500, "INTERNAL_ERROR", "boom", nil)
	assert.NotContains(t, rec.Body.String(), "details")
}
