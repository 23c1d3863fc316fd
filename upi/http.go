package upi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Govind-619/PayRoute/utils"
)

// sendJSON posts or gets a JSON document and decodes the reply into a map.
func sendJSON(ctx context.Context, client *http.Client, method, endpoint string, body []byte, headers map[string]string) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, utils.GatewayError("UPI request could not be built", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		utils.LogError("UPI call %s failed: %v", endpoint, err)
		return nil, utils.GatewayError("UPI provider is unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.GatewayError("UPI response could not be read", err)
	}

	out := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, utils.GatewayError("UPI provider returned an unreadable response", err)
		}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		utils.LogError("UPI call %s returned %d", endpoint, resp.StatusCode)
		return out, utils.GatewayError(fmt.Sprintf("UPI provider returned status %d", resp.StatusCode), nil)
	}
	return out, nil
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func obj(m map[string]interface{}, keys ...string) map[string]interface{} {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return map[string]interface{}{}
		}
		cur = next
	}
	return cur
}
