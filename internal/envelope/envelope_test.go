package envelope_test

import (
	"net/http"
	"testing"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		status      int
		wantSuccess bool
		wantData    string
		wantMessage string
		wantStatus  int
	}{
		{
			name:        "success envelope passes through",
			body:        `{"success":true,"data":{"id":7},"message":"ok"}`,
			status:      http.StatusOK,
			wantSuccess: true,
			wantData:    `{"id":7}`,
			wantMessage: "ok",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "failed envelope passes through",
			body:        `{"success":false,"message":"room is occupied","statusCode":409}`,
			status:      http.StatusOK,
			wantSuccess: false,
			wantMessage: "room is occupied",
			wantStatus:  http.StatusConflict,
		},
		{
			name:        "statusCode and value are lifted",
			body:        `{"statusCode":200,"value":[1,2,3]}`,
			status:      http.StatusOK,
			wantSuccess: true,
			wantData:    `[1,2,3]`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "pascal case statusCode and value",
			body:        `{"StatusCode":200,"Value":{"roomNumber":"101"}}`,
			status:      http.StatusOK,
			wantSuccess: true,
			wantData:    `{"roomNumber":"101"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "items page is the payload",
			body:        `{"items":[{"id":1}],"totalItems":47,"pageNumber":1,"pageSize":10}`,
			status:      http.StatusOK,
			wantSuccess: true,
			wantData:    `{"items":[{"id":1}],"totalItems":47,"pageNumber":1,"pageSize":10}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "raw array is the payload",
			body:        `[{"id":1},{"id":2}]`,
			status:      http.StatusCreated,
			wantSuccess: true,
			wantData:    `[{"id":1},{"id":2}]`,
			wantStatus:  http.StatusCreated,
		},
		{
			name:        "statusCode other than 200 is payload",
			body:        `{"statusCode":201,"value":5}`,
			status:      http.StatusOK,
			wantSuccess: true,
			wantData:    `{"statusCode":201,"value":5}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "plain text passes through as string",
			body:        `Deleted`,
			status:      http.StatusOK,
			wantSuccess: true,
			wantData:    `"Deleted"`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "empty body",
			body:        ``,
			status:      http.StatusNoContent,
			wantSuccess: true,
			wantStatus:  http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := envelope.Normalize([]byte(tt.body), tt.status)

			assert.Equal(t, tt.wantSuccess, env.Success)
			assert.Equal(t, tt.wantMessage, env.Message)
			assert.Equal(t, tt.wantStatus, env.StatusCode)
			if tt.wantData == "" {
				assert.Empty(t, env.Data)
			} else {
				assert.JSONEq(t, tt.wantData, string(env.Data))
			}
		})
	}
}

func TestEnvelopeInto(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var ids []int
		err := envelope.Normalize([]byte(`{"statusCode":200,"value":[1,2,3]}`), http.StatusOK).Into(&ids)

		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, ids)
	})

	t.Run("error - failed envelope", func(t *testing.T) {
		t.Parallel()
		var out map[string]any
		err := envelope.Fail(http.StatusNotFound, "booking not found").Into(&out)

		var envErr *envelope.Error
		require.ErrorAs(t, err, &envErr)
		assert.Equal(t, http.StatusNotFound, envErr.StatusCode)
		assert.Equal(t, "booking not found", envErr.Message)
	})

	t.Run("error - no data", func(t *testing.T) {
		t.Parallel()
		var out map[string]any
		err := envelope.Normalize(nil, http.StatusNoContent).Into(&out)

		require.ErrorIs(t, err, envelope.ErrNoData)
	})
}

func TestFailDefaultsTo500(t *testing.T) {
	t.Parallel()

	env := envelope.Fail(0, "boom")

	assert.False(t, env.Success)
	assert.Equal(t, http.StatusInternalServerError, env.StatusCode)
	require.Error(t, env.Err())
}

func TestMessageFrom(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Invalid credentials", envelope.MessageFrom([]byte(`{"Message":"Invalid credentials"}`)))
	assert.Equal(t, "One or more validation errors occurred.",
		envelope.MessageFrom([]byte(`{"title":"One or more validation errors occurred.","errors":{"Email":["bad"]}}`)))
	assert.Equal(t, "Email: is required", envelope.MessageFrom([]byte(`{"errors":{"Email":["is required"]}}`)))
	assert.Equal(t, "gateway down", envelope.MessageFrom([]byte(`gateway down`)))
	assert.Empty(t, envelope.MessageFrom(nil))
}
