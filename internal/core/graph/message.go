package graph

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MessageKind selects how a message body is interpreted
type MessageKind string

const (
	// MessageKindText carries a plain text body
	MessageKindText MessageKind = "text"
	// MessageKindLinkedResults carries web-search style result cards
	MessageKindLinkedResults MessageKind = "linked-results"
)

// LinkedResult is one web-search style card
type LinkedResult struct {
	Title   string `json:"title" msgpack:"title"`
	Link    string `json:"link" msgpack:"link"`
	Snippet string `json:"snippet" msgpack:"snippet"`
	Source  string `json:"source" msgpack:"source"`
	Date    string `json:"date" msgpack:"date"`
	Favicon string `json:"favicon,omitempty" msgpack:"favicon,omitempty"`
}

// Message is one entry of an output node transcript. Messages are
// immutable once appended.
type Message struct {
	Sender    Sender         `json:"sender" msgpack:"sender"`
	Kind      MessageKind    `json:"kind" msgpack:"kind"`
	Text      string         `json:"text,omitempty" msgpack:"text,omitempty"`
	Results   []LinkedResult `json:"results,omitempty" msgpack:"results,omitempty"`
	ModelUsed string         `json:"model_used,omitempty" msgpack:"model_used,omitempty"`
	IsError   bool           `json:"is_error,omitempty" msgpack:"is_error,omitempty"`
	CreatedAt time.Time      `json:"created_at" msgpack:"created_at"`
}

// Validate ensures message integrity
func (m *Message) Validate() error {
	if m.Sender != SenderUser && m.Sender != SenderAssistant {
		return ErrInvalidSender
	}
	if m.Kind != MessageKindText && m.Kind != MessageKindLinkedResults {
		return ErrInvalidMessageKind
	}
	return nil
}

// UserMessage echoes a user's query
func UserMessage(text string) Message {
	return Message{Sender: SenderUser, Kind: MessageKindText, Text: text, CreatedAt: time.Now()}
}

// messagesFrom reads a transcript out of a node data value. Unreadable
// values yield nil; Validate reports them.
func messagesFrom(v interface{}) []Message {
	msgs, err := decodeMessages(v)
	if err != nil {
		return nil
	}
	return msgs
}

// decodeMessages converts a node data value into a transcript. Values
// decoded from a snapshot arrive as generic slices of maps and are
// converted back through their json form.
func decodeMessages(v interface{}) ([]Message, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case []Message:
		return append([]Message(nil), tv...), nil
	case []interface{}:
		raw, err := json.Marshal(stringKeyed(tv))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTranscript, err)
		}
		var out []Message
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTranscript, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidTranscript, v)
	}
}

// stringKeyed rewrites map[interface{}]interface{} values, which json
// cannot encode, into string keyed maps.
func stringKeyed(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(tv))
		for k, val := range tv {
			out[fmt.Sprint(k)] = stringKeyed(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(tv))
		for k, val := range tv {
			out[k] = stringKeyed(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, val := range tv {
			out[i] = stringKeyed(val)
		}
		return out
	default:
		return v
	}
}

// AppendMessages returns a new transcript with msgs appended to existing.
// The existing slice is never mutated.
func AppendMessages(existing []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(existing)+len(msgs))
	out = append(out, existing...)
	return append(out, msgs...)
}
