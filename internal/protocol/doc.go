// Package protocol implements the chat wire codec.
//
// The backend speaks small tagged JSON frames over a persistent WebSocket:
//   - Outbound: "text_message" (id + content), "ping"
//   - Inbound: "chunk", "complete", "error", "pong"
//
// Encoding and decoding are pure transforms. A frame that cannot be decoded
// yields a *DecodeError carrying the raw payload so callers can log it and
// drop the frame without faulting the connection.
package protocol
