package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/geocoder89/visionhub/internal/observability"
)

const maxRESTBody = 4 << 20

// RESTCaller runs procedures through a PostgREST style /rest/v1/rpc endpoint.
type RESTCaller struct {
	baseURL string
	apiKey  string
	client  *http.Client
	prom    *observability.Prom
}

func NewRESTCaller(baseURL, apiKey string, client *http.Client, prom *observability.Prom) *RESTCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTCaller{baseURL: baseURL, apiKey: apiKey, client: client, prom: prom}
}

func (c *RESTCaller) Call(ctx context.Context, proc Procedure, args []Arg) (json.RawMessage, error) {
	body := make(map[string]any, len(args))
	for _, a := range args {
		body[a.Name] = a.Value
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var out json.RawMessage
	err = c.prom.ObserveUpstream("rpc.rest", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+proc.Name, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("apikey", c.apiKey)
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTBody))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(b, 200))
		}

		out = b
		return nil
	})

	return out, err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
