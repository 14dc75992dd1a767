// Package inbound exposes the HTTP surface of the integration layer.
//
// Handlers translate between JSON payloads and the service operations, and
// map rich error envelopes to HTTP status codes. The OAuth callback is the
// one browser-facing route; everything else is JSON in, JSON out.
package inbound
