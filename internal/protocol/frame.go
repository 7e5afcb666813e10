package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frame type tags.
const (
	TypeTextMessage = "text_message" // outbound only
	TypePing        = "ping"        // outbound only
	TypeChunk       = "chunk"
	TypeComplete    = "complete"
	TypeError       = "error"
	TypePong        = "pong"
)

// Encoding errors (caller mistakes, never wire conditions).
var (
	ErrMissingID    = errors.New("frame id is required")
	ErrEmptyContent = errors.New("message content is empty")
)

// Frame is one decoded inbound unit of the wire protocol.
type Frame struct {
	Type    string
	ID      string
	Content string // chunk frames
	Reason  string // error frames; may be empty, backend shape varies
}

// DecodeError reports an inbound payload that could not be decoded.
// Raw carries the original bytes for diagnostic logging.
type DecodeError struct {
	Raw    []byte
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode frame: " + e.Reason
}

// textMessage is the outbound request shape.
type textMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Content string `json:"content"`
}

// pingFrame is the outbound liveness probe shape.
type pingFrame struct {
	Type string `json:"type"`
}

// wireFrame is the superset of inbound frame shapes. The backend sends the
// identifier as "id"; older builds used "message_id", so both are accepted.
type wireFrame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	MessageID string          `json:"message_id"`
	Content   string          `json:"content"`
	Reason    json.RawMessage `json:"reason"`
}

// EncodeText encodes an outbound text request. The id must be non-empty and
// the content must be non-empty after trimming.
func EncodeText(id, content string) ([]byte, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	return json.Marshal(textMessage{
		Type:    TypeTextMessage,
		ID:      id,
		Content: content,
	})
}

// EncodePing encodes an outbound ping frame.
func EncodePing() []byte {
	data, _ := json.Marshal(pingFrame{Type: TypePing})
	return data
}

// Decode parses one inbound frame. It accepts only the recognized inbound
// tags; anything else, or a structurally malformed payload, returns a
// *DecodeError and never panics.
func Decode(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Frame{}, &DecodeError{Raw: raw, Reason: fmt.Sprintf("malformed payload: %v", err)}
	}

	id := w.ID
	if id == "" {
		id = w.MessageID
	}

	switch w.Type {
	case TypeChunk:
		if id == "" {
			return Frame{}, &DecodeError{Raw: raw, Reason: "chunk frame missing id"}
		}
		return Frame{Type: TypeChunk, ID: id, Content: w.Content}, nil

	case TypeComplete:
		if id == "" {
			return Frame{}, &DecodeError{Raw: raw, Reason: "complete frame missing id"}
		}
		return Frame{Type: TypeComplete, ID: id}, nil

	case TypeError:
		if id == "" {
			return Frame{}, &DecodeError{Raw: raw, Reason: "error frame missing id"}
		}
		return Frame{Type: TypeError, ID: id, Reason: decodeReason(w.Reason)}, nil

	case TypePong:
		return Frame{Type: TypePong}, nil

	default:
		return Frame{}, &DecodeError{Raw: raw, Reason: fmt.Sprintf("unrecognized frame type %q", w.Type)}
	}
}

// decodeReason extracts the optional reason text from an error frame.
// The exact backend shape is not pinned down, so anything that is not a
// plain string is left empty and the caller logs the raw payload.
func decodeReason(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
