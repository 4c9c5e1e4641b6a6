package client

import (
	"errors"
	"testing"

	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
	"github.com/Sternrassler/fsf-api-client/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyProduct(t *testing.T) {
	detail := endpoint.Descriptor{
		URL:     "http://x/v1/location/detail/property/7",
		Key:     endpoint.ID(7),
		Product: endpoint.Product{Category: "location", Subtype: "detail", LocationType: "property"},
	}
	adaptation := endpoint.Descriptor{
		URL:     "http://x/v1/adaptation/detail/9",
		Key:     endpoint.ID(9),
		Product: endpoint.Product{Category: "adaptation", Subtype: "detail"},
	}

	tests := []struct {
		name      string
		desc      endpoint.Descriptor
		status    int
		body      string
		wantValid bool
		wantMap   map[string]any
		reason    string
		retryable bool
		apiErr    error
	}{
		{
			name:      "payload",
			desc:      detail,
			status:    200,
			body:      `{"fsid": 7, "valid_id": true}`,
			wantValid: true,
			wantMap:   map[string]any{"fsid": float64(7), "valid_id": true},
		},
		{
			name:    "error body on 404",
			desc:    detail,
			status:  404,
			body:    `{"error": {"code": 404, "message": "Not Found"}}`,
			wantMap: map[string]any{"fsid": int64(7), "validId": false, "error": "Not Found"},
			reason:  "error_body",
		},
		{
			name:    "error body uses product sentinel field",
			desc:    adaptation,
			status:  200,
			body:    `{"error": {"code": 404, "message": "no adaptation"}}`,
			wantMap: map[string]any{"adaptationId": int64(9), "validId": false, "error": "no adaptation"},
			reason:  "error_body",
		},
		{
			name:    "error body on 500",
			desc:    detail,
			status:  500,
			body:    `{"error": {"code": 500, "message": "lookup failed"}}`,
			wantMap: map[string]any{"fsid": int64(7), "validId": false, "error": "lookup failed"},
			reason:  "error_body",
		},
		{
			name:      "500 without error field is a payload",
			desc:      detail,
			status:    500,
			body:      `{"fsid": 7}`,
			wantValid: true,
			wantMap:   map[string]any{"fsid": float64(7)},
		},
		{
			name:      "empty error object is no error",
			desc:      detail,
			status:    200,
			body:      `{"fsid": 7, "error": {}}`,
			wantValid: true,
			wantMap:   map[string]any{"fsid": float64(7), "error": map[string]any{}},
		},
		{
			name:      "empty error list is no error",
			desc:      detail,
			status:    200,
			body:      `{"fsid": 7, "error": []}`,
			wantValid: true,
			wantMap:   map[string]any{"fsid": float64(7), "error": []any{}},
		},
		{
			name:      "zero error is no error",
			desc:      detail,
			status:    404,
			body:      `{"fsid": 7, "error": 0}`,
			wantValid: true,
			wantMap:   map[string]any{"fsid": float64(7), "error": float64(0)},
		},
		{
			name:      "empty error string is no error",
			desc:      detail,
			status:    200,
			body:      `{"fsid": 7, "error": ""}`,
			wantValid: true,
			wantMap:   map[string]any{"fsid": float64(7), "error": ""},
		},
		{
			name:    "bare error string",
			desc:    detail,
			status:  404,
			body:    `{"error": "Not Found"}`,
			wantMap: map[string]any{"fsid": int64(7), "validId": false, "error": "Not Found"},
			reason:  "error_body",
		},
		{
			name:    "non-object body",
			desc:    detail,
			status:  200,
			body:    `[1, 2, 3]`,
			wantMap: map[string]any{"fsid": int64(7), "validId": false},
			reason:  "invalid_body",
		},
		{
			name:      "malformed body is retryable",
			desc:      detail,
			status:    200,
			body:      `{"fsid": `,
			retryable: true,
		},
		{
			name:      "empty body is retryable",
			desc:      detail,
			status:    200,
			body:      ``,
			retryable: true,
		},
		{
			name:   "429 is systemic",
			desc:   detail,
			status: 429,
			body:   `{"error": {"code": 429, "message": "Too Many Requests"}}`,
			apiErr: ErrRateLimited,
		},
		{
			name:   "401 without error field",
			desc:   detail,
			status: 401,
			body:   `{}`,
			apiErr: ErrUnauthorized,
		},
		{
			name:   "embedded code wins over status",
			desc:   detail,
			status: 400,
			body:   `{"error": {"code": 503, "message": "maintenance"}}`,
			apiErr: ErrOffline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, reason, err := classifyProduct(tt.desc, response{status: tt.status, body: []byte(tt.body)})

			switch {
			case tt.retryable:
				var te *transportError
				require.True(t, errors.As(err, &te), "want transportError, got %v", err)
				assert.True(t, te.retryable)
				assert.Equal(t, reasonDecode, te.reason)
			case tt.apiErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.apiErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantValid, result.Valid())
				assert.Equal(t, tt.wantMap, result.Map())
				assert.Equal(t, tt.reason, reason)
				assert.Equal(t, tt.desc.Key, result.Key)
			}
		})
	}
}

func TestClassifyTile(t *testing.T) {
	desc := endpoint.Descriptor{
		URL: "http://x/v1/tile/probability/depth/2050/100/12/942/1715.png",
		Key: endpoint.Tile(12, 942, 1715),
		Product: endpoint.Product{
			Category: endpoint.CategoryTile,
			Subtype:  "probability",
			Tile:     &endpoint.TileOptions{Year: 2050, ReturnPeriod: 100},
		},
	}
	png := []byte{0x89, 'P', 'N', 'G'}

	t.Run("200 image", func(t *testing.T) {
		result, reason, err := classifyTile(desc, response{status: 200, body: png})
		require.NoError(t, err)
		assert.Empty(t, reason)
		assert.True(t, result.Valid())
		assert.Equal(t, map[string]any{"coordinate": [3]int{12, 942, 1715}, "image": png}, result.Map())
	})

	t.Run("500 outside coverage", func(t *testing.T) {
		result, reason, err := classifyTile(desc, response{status: 500})
		require.NoError(t, err)
		assert.Equal(t, "outside_coverage", reason)
		assert.False(t, result.Valid())
		assert.Equal(t, map[string]any{"coordinate": [3]int{12, 942, 1715}, "image": nil, "validId": false}, result.Map())
	})

	t.Run("429 is systemic", func(t *testing.T) {
		info := ratelimit.Info{Limit: "10", Remaining: "0", Reset: "5"}
		_, _, err := classifyTile(desc, response{status: 429, info: info})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Contains(t, err.Error(), "Limit: 10. Remaining: 0. Reset: 5")
	})
}
