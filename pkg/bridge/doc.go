// Package bridge implements the protocol translation between the
// OpenAI-compatible surface and the bot-platform upstream.
//
// It has two halves. The normalizer converts the heterogeneous inbound
// message shapes (plain text, typed content parts, inline image objects,
// multipart uploads) into one canonical upstream chat request. The stream
// bridge re-frames the upstream's newline-delimited event protocol into
// OpenAI SSE chunks, holding per-connection state for partial frames that
// straddle byte arrivals.
package bridge
