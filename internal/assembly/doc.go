// Package assembly reconstructs streamed responses.
//
// The Assembler accumulates ordered text fragments per message identifier
// until the backend signals completion or failure, bounding the number of
// in-flight messages and force-failing messages that stall.
//
// The Batcher coalesces rapid fragment arrivals into fixed-interval flushes
// so the consumer sees a bounded update rate regardless of backend chunk
// rate, with an immediate flush when a message resolves.
package assembly
