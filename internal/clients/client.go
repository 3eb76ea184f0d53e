// internal/clients/client.go

// Package clients talks to a running circulation desk over its HTTP API.
// Each client satisfies the matching service interface, so code written
// against the services can drive a remote desk unchanged.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"loandesk/internal/httpx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type base struct {
	baseURL string
	http    *http.Client
}

func newBase(baseURL string, hc *http.Client) base {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return base{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// remoteError carries the server's message and unwraps to the local sentinel
// for its status or kind.
type remoteError struct {
	status   int
	msg      string
	sentinel error
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }

// errorMapper turns a non-2xx response into an error.
type errorMapper func(status int, body httpx.ErrorResponse) error

// do sends in as JSON and decodes the body into out when the status is want.
func (b base) do(ctx context.Context, method, path string, in, out interface{}, want int, mapErr errorMapper) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var eb httpx.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		if err := mapErr(resp.StatusCode, eb); err != nil {
			return err
		}
		return &remoteError{status: resp.StatusCode, msg: eb.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func byStatus(table map[int]error) errorMapper {
	return func(status int, body httpx.ErrorResponse) error {
		if sentinel, ok := table[status]; ok {
			return &remoteError{status: status, msg: body.Error, sentinel: sentinel}
		}
		return nil
	}
}
