package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

const maxResponseBody = 8 << 20

// call describes one backend request.
type call struct {
	operation   string
	method      string
	template    string
	params      map[string]string
	body        []byte
	contentType string
	idempotent  bool
}

// path expands the call template with styled path parameters.
func (c call) path() (string, error) {
	out := c.template
	for name, value := range c.params {
		styled, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
		if err != nil {
			return "", fmt.Errorf("style %s parameter: %w", name, err)
		}
		out = strings.ReplaceAll(out, "{"+name+"}", styled)
	}
	return out, nil
}

func jsonCall(operation, method, template string, params map[string]string, payload any) (call, error) {
	c := call{operation: operation, method: method, template: template, params: params, idempotent: method == http.MethodGet}
	if payload == nil {
		return c, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return call{}, fmt.Errorf("marshal %s request: %w", operation, err)
	}
	c.body = body
	c.contentType = "application/json"
	return c, nil
}

type formFile struct {
	field       string
	fileName    string
	contentType string
	content     []byte
}

func multipartBody(fields map[string]string, file formFile) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.fileName))
	contentType := file.contentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// do sends c and returns the raw 2xx body. Non-idempotent calls are never retried.
func (c *Client) do(ctx context.Context, req call) ([]byte, error) {
	path, err := req.path()
	if err != nil {
		return nil, err
	}

	var body []byte
	attempt := func(ctx context.Context) error {
		out, err := c.roundTrip(ctx, req, path)
		if err != nil {
			return err
		}
		body = out
		return nil
	}

	if req.idempotent {
		err = c.executor.Execute(ctx, req.operation, attempt, classifyPortalError)
	} else {
		err = c.executor.ExecuteOnce(ctx, req.operation, attempt, classifyPortalError)
	}
	if err != nil {
		return nil, toDomainError(req.operation, err)
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, req call, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("portal %s rate limit: %w", req.operation, err)
	}

	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.operation, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-Id", requestID)
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.operation, 0, time.Since(start))
		return nil, fmt.Errorf("portal %s request: %w", req.operation, err)
	}
	defer resp.Body.Close()
	c.observe(req.operation, resp.StatusCode, time.Since(start))

	c.logger.Debug("portal_call",
		"operation", req.operation,
		"method", req.method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(req.operation, resp)
	}
	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.operation, err)
	}
	if c.contract != nil {
		_ = c.contract.Check(req.operation, req.method, req.template, resp.StatusCode, out)
	}
	return out, nil
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveCall(operation, status, d)
	}
}

// idValue sends numeric ids as JSON numbers, the way the backend stores them.
func idValue(id string) any {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if len(id) > 1 && id[0] == '0' {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return json.Number(id)
}
