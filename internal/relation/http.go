package relation

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

	"catalyst.org/internal/obs"
)

// HTTPClient talks to the permission backend over HTTP/JSON. Every resource
// and subject type string is namespaced with the tenant prefix before it
// leaves the process.
type HTTPClient struct {
	base    string
	prefix  string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPClient constructs a client for the given backend base URL.
func NewHTTPClient(base, prefix string, timeout time.Duration) (*HTTPClient, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, errors.New("relation: backend base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("relation: invalid backend URL: %w", err)
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("relation: tenant prefix is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		base:    base,
		prefix:  prefix,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type writeRequest struct {
	Operation    string       `json:"operation"` // "touch" | "delete"
	Relationship Relationship `json:"relationship"`
}

type writeResponse struct {
	Token     string    `json:"token"`
	WrittenAt time.Time `json:"writtenAt"`
}

type readRequest struct {
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
	Relation     string `json:"relation,omitempty"`
	SubjectType  string `json:"subjectType,omitempty"`
	SubjectID    string `json:"subjectId,omitempty"`
}

type readResponse struct {
	Relationships []Relationship `json:"relationships"`
}

type checkRequest struct {
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	Permission   string `json:"permission"`
	SubjectType  string `json:"subjectType"`
	SubjectID    string `json:"subjectId"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (c *HTTPClient) Touch(ctx context.Context, r Relationship) (WriteToken, error) {
	return c.write(ctx, "touch", r)
}

func (c *HTTPClient) Delete(ctx context.Context, r Relationship) (WriteToken, error) {
	return c.write(ctx, "delete", r)
}

func (c *HTTPClient) write(ctx context.Context, op string, r Relationship) (WriteToken, error) {
	if err := r.Validate(); err != nil {
		obs.RelationshipWrites.WithLabelValues(op, "invalid").Inc()
		return WriteToken{}, err
	}
	var resp writeResponse
	err := c.post(ctx, "/v1/relationships/write", writeRequest{
		Operation:    op,
		Relationship: c.qualify(r),
	}, &resp)
	if err != nil {
		obs.RelationshipWrites.WithLabelValues(op, "error").Inc()
		return WriteToken{}, err
	}
	obs.RelationshipWrites.WithLabelValues(op, "ok").Inc()
	return WriteToken{Token: resp.Token, WrittenAt: resp.WrittenAt}, nil
}

func (c *HTTPClient) Read(ctx context.Context, f Filter) ([]Relationship, error) {
	req := readRequest{
		ResourceType: c.qualifyType(f.ResourceType),
		ResourceID:   f.ResourceID,
		Relation:     f.Relation,
		SubjectType:  c.qualifyType(f.SubjectType),
		SubjectID:    f.SubjectID,
	}
	var resp readResponse
	if err := c.post(ctx, "/v1/relationships/read", req, &resp); err != nil {
		return nil, err
	}
	out := make([]Relationship, 0, len(resp.Relationships))
	for _, r := range resp.Relationships {
		out = append(out, c.unqualify(r))
	}
	return out, nil
}

func (c *HTTPClient) Check(ctx context.Context, resource Object, permission string, subject Object) (bool, error) {
	req := checkRequest{
		ResourceType: c.qualifyType(resource.Type),
		ResourceID:   resource.ID,
		Permission:   permission,
		SubjectType:  c.qualifyType(subject.Type),
		SubjectID:    subject.ID,
	}
	var resp checkResponse
	if err := c.post(ctx, "/v1/permissions/check", req, &resp); err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// A timeout or transport failure is an unknown outcome, not a denial.
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: backend returned %d", ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relation: backend returned %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) qualifyType(t string) string {
	if t == "" {
		return ""
	}
	return c.prefix + "/" + t
}

func (c *HTTPClient) qualify(r Relationship) Relationship {
	r.ResourceType = c.qualifyType(r.ResourceType)
	r.SubjectType = c.qualifyType(r.SubjectType)
	return r
}

func (c *HTTPClient) unqualify(r Relationship) Relationship {
	r.ResourceType = strings.TrimPrefix(r.ResourceType, c.prefix+"/")
	r.SubjectType = strings.TrimPrefix(r.SubjectType, c.prefix+"/")
	return r
}

var _ Client = (*HTTPClient)(nil)
