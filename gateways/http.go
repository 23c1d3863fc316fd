package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Govind-619/PayRoute/utils"
)

// restClient is a thin JSON/form client for provider REST APIs.
type restClient struct {
	http    *http.Client
	baseURL string
	name    string
}

type restCall struct {
	method  string
	path    string
	body    io.Reader
	headers map[string]string
}

// do sends the call and decodes a JSON response into out. Transport errors
// and HTTP statuses >= 400 come back as GatewayError.
func (c *restClient) do(ctx context.Context, call restCall, out interface{}) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, call.method, c.baseURL+call.path, call.body)
	if err != nil {
		return nil, utils.GatewayError(c.name+" request could not be built", err)
	}
	for k, v := range call.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	utils.LogDebug("%s %s %s", c.name, call.method, call.path)
	resp, err := c.http.Do(req)
	if err != nil {
		utils.LogError("%s call %s failed: %v", c.name, call.path, err)
		return nil, utils.GatewayError(c.name+" is unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.GatewayError(c.name+" response could not be read", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		utils.LogError("%s call %s returned %d: %s", c.name, call.path, resp.StatusCode, msg)
		return data, utils.GatewayError(fmt.Sprintf("%s returned status %d", c.name, resp.StatusCode), fmt.Errorf("%s", msg))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return data, utils.GatewayError(c.name+" returned an unreadable response", err)
		}
	}
	return data, nil
}

// toMap turns a raw JSON body into the generic map kept on the transaction.
func toMap(data []byte) map[string]interface{} {
	m := map[string]interface{}{}
	if len(data) == 0 {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{"body": string(data)}
	}
	return m
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func nested(m map[string]interface{}, keys ...string) map[string]interface{} {
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
