// Package upstream implements the HTTP client for the bot-platform
// backend: the chat call (with its vision path variant), the streaming
// chat call, and the file registration call used to exchange inline image
// bytes for an opaque handle.
//
// The caller's bearer token is forwarded verbatim on every call; the
// client holds no credentials of its own.
package upstream
