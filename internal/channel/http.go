package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPRegistrar consumes a remote channel metadata service.
type HTTPRegistrar struct {
	base string
	http *http.Client
}

func NewHTTPRegistrar(base string, timeout time.Duration) (*HTTPRegistrar, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, errors.New("channel: registrar base URL is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRegistrar{base: base, http: &http.Client{Timeout: timeout}}, nil
}

func (c *HTTPRegistrar) Create(ctx context.Context, namespace string, ch Channel) (Channel, error) {
	var out Channel
	err := c.do(ctx, http.MethodPost, c.path(namespace, ""), ch, &out)
	return out, err
}

func (c *HTTPRegistrar) Read(ctx context.Context, namespace, id string) (Channel, error) {
	var out Channel
	err := c.do(ctx, http.MethodGet, c.path(namespace, id), nil, &out)
	return out, err
}

func (c *HTTPRegistrar) Update(ctx context.Context, namespace string, ch Channel) (Channel, error) {
	var out Channel
	err := c.do(ctx, http.MethodPut, c.path(namespace, ch.ID), ch, &out)
	return out, err
}

func (c *HTTPRegistrar) Remove(ctx context.Context, namespace, id string) error {
	return c.do(ctx, http.MethodDelete, c.path(namespace, id), nil, nil)
}

func (c *HTTPRegistrar) List(ctx context.Context, namespace string) ([]Channel, error) {
	var out []Channel
	err := c.do(ctx, http.MethodGet, c.path(namespace, ""), nil, &out)
	return out, err
}

func (c *HTTPRegistrar) path(namespace, id string) string {
	p := c.base + "/v1/namespaces/" + url.PathEscape(namespace) + "/channels"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func (c *HTTPRegistrar) do(ctx context.Context, method, target string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("channel: registrar call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrAlreadyExists
	case resp.StatusCode >= 400:
		return fmt.Errorf("channel: registrar returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Registrar = (*HTTPRegistrar)(nil)
