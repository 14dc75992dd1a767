// Package devkit provides test doubles for exercising provider adapters
// without network access: a scriptable transport and canned platform
// payloads.
package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-social/core"
)

// Script is one scripted exchange. When Match is non-empty the script only
// answers requests whose URL contains it; empty Match answers anything.
// Scripts are consumed in order among those that match.
type Script struct {
	Match    string
	Response core.TransportResponse
	Err      error
}

// JSONScript builds a Script with a JSON body for the given payload.
func JSONScript(match string, status int, payload any) Script {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("devkit: encode script payload: %v", err))
	}
	return Script{
		Match: match,
		Response: core.TransportResponse{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       body,
		},
	}
}

// FakeTransport is a core.TransportAdapter that replays scripts and records
// every request it sees.
type FakeTransport struct {
	mu       sync.Mutex
	scripts  []Script
	consumed []bool
	requests []core.TransportRequest
}

func NewFakeTransport(scripts ...Script) *FakeTransport {
	return &FakeTransport{
		scripts:  append([]Script(nil), scripts...),
		consumed: make([]bool, len(scripts)),
	}
}

func (t *FakeTransport) Kind() string { return "fake" }

func (t *FakeTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if t == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, cloneRequest(req))
	for index, script := range t.scripts {
		if t.consumed[index] {
			continue
		}
		if script.Match != "" && !strings.Contains(req.URL, script.Match) {
			continue
		}
		t.consumed[index] = true
		return cloneResponse(script.Response), script.Err
	}
	return core.TransportResponse{}, fmt.Errorf("devkit: no script for %s %s", req.Method, req.URL)
}

// Requests returns a copy of everything sent through the transport.
func (t *FakeTransport) Requests() []core.TransportRequest {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.TransportRequest, 0, len(t.requests))
	for _, item := range t.requests {
		out = append(out, cloneRequest(item))
	}
	return out
}

// RequestBodies decodes every recorded request body as JSON.
func (t *FakeTransport) RequestBodies() []map[string]any {
	requests := t.Requests()
	out := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		decoded := map[string]any{}
		if len(req.Body) > 0 {
			_ = json.Unmarshal(req.Body, &decoded)
		}
		out = append(out, decoded)
	}
	return out
}

func cloneRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
		Idempotency:          in.Idempotency,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransport)(nil)
