// Package connection implements the resilient streaming client.
//
// The Manager:
//   - Owns one persistent WebSocket connection to the chat backend
//   - Drives reconnection with capped exponential backoff and jitter
//   - Monitors liveness with application-level ping/pong frames
//   - Routes inbound frames through reassembly and batching
//   - Surfaces state changes, text deltas, and message outcomes to the consumer
package connection
