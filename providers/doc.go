// Package providers contains the platform adapters. Each subpackage wraps
// one social platform behind core.Provider: it runs the platform's auth
// flow, resolves the connected identity, and places posts, reducing every
// platform error payload to a core.ProviderError.
//
// OAuth2Provider implements the shared authorization-code machinery;
// concrete providers embed it and add identity resolution and publishing
// on top of a core.TransportAdapter.
package providers
