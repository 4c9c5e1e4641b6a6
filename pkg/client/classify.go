package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
	"github.com/Sternrassler/fsf-api-client/pkg/ratelimit"
)

// errEmptyBody is retried like a malformed body.
var errEmptyBody = errors.New("empty response body")

// response is what the executor hands to the classifiers.
type response struct {
	status int
	body   []byte
	info   ratelimit.Info
}

// classifyTile reads a tile response. 500 means the coordinates are outside
// coverage and yields a sentinel. Anything else but 200 is systemic.
func classifyTile(d endpoint.Descriptor, resp response) (Result, string, error) {
	switch resp.status {
	case http.StatusOK:
		return Result{Key: d.Key, Tile: true, Image: resp.body}, "", nil
	case http.StatusInternalServerError:
		return sentinelResult(d, ""), "outside_coverage", nil
	default:
		return Result{}, "", newAPIError(resp.status, http.StatusText(resp.status), resp.info, d.URL)
	}
}

// apiErrorBody is the error object the service embeds in JSON bodies.
type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// classifyProduct reads a JSON product response. The body is parsed before
// the status is looked at, so a malformed body is retried whatever the status.
// The returned reason is non-empty when the result is a sentinel.
func classifyProduct(d endpoint.Descriptor, resp response) (Result, string, error) {
	if len(resp.body) == 0 {
		return Result{}, "", &transportError{reason: reasonDecode, retryable: true, err: errEmptyBody}
	}

	var decoded any
	if err := json.Unmarshal(resp.body, &decoded); err != nil {
		return Result{}, "", &transportError{reason: reasonDecode, retryable: true, err: fmt.Errorf("decode body: %w", err)}
	}
	obj, isObject := decoded.(map[string]any)

	switch resp.status {
	case http.StatusOK, http.StatusNotFound, http.StatusInternalServerError:
	default:
		status, message := resp.status, http.StatusText(resp.status)
		if isObject {
			if e, ok := embeddedError(obj); ok {
				if e.Code != 0 {
					status = e.Code
				}
				if e.Message != "" {
					message = e.Message
				}
			}
		}
		return Result{}, "", newAPIError(status, message, resp.info, d.URL)
	}

	if !isObject {
		return sentinelResult(d, ""), "invalid_body", nil
	}

	if e, ok := embeddedError(obj); ok {
		return sentinelResult(d, e.Message), "error_body", nil
	}

	return Result{Key: d.Key, Payload: obj, Body: resp.body}, "", nil
}

// embeddedError extracts the "error" field. The service sends an object,
// but a bare string is accepted as the message. Empty values (null, false,
// 0, "", {} and []) mean no error.
func embeddedError(obj map[string]any) (apiErrorBody, bool) {
	switch v := obj["error"].(type) {
	case nil:
		return apiErrorBody{}, false
	case map[string]any:
		if len(v) == 0 {
			return apiErrorBody{}, false
		}
		var e apiErrorBody
		if code, ok := v["code"].(float64); ok {
			e.Code = int(code)
		}
		e.Message, _ = v["message"].(string)
		return e, true
	case []any:
		return apiErrorBody{}, len(v) > 0
	case string:
		return apiErrorBody{Message: v}, v != ""
	case float64:
		return apiErrorBody{}, v != 0
	case bool:
		return apiErrorBody{}, v
	default:
		return apiErrorBody{}, true
	}
}
