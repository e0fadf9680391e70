// Package api defines the OpenAI-compatible wire types exposed by the
// gateway: the Chat Completions request with its polymorphic message
// content, the completion and chunk response shapes, and the error
// taxonomy used across all packages.
package api
