package agent

import (
	"encoding/json"
	"fmt"
)

// EventType is the tag carried by every line of the runtime's stream.
type EventType string

const (
	EventAssistant EventType = "assistant"
	EventResult    EventType = "result"
	EventSystem    EventType = "system"
	EventUser      EventType = "user"
)

// Block types inside an assistant message.
const (
	BlockText    = "text"
	BlockToolUse = "tool_use"
)

// ResultSuccess is the only result subtype that counts as success.
const ResultSuccess = "success"

// Event is one message from the runtime's output stream.
type Event interface {
	EventType() EventType
}

// ContentBlock is one entry of an assistant message. Only the fields that
// belong to Type are populated.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// AssistantEvent carries model output: text and tool invocations in order.
type AssistantEvent struct {
	SessionID string
	Content   []ContentBlock
}

// ResultEvent terminates a session.
type ResultEvent struct {
	Subtype      string
	IsError      bool
	Errors       []string
	Result       string
	NumTurns     int
	DurationMS   int64
	TotalCostUSD float64
	SessionID    string
}

// Success reports whether the session finished with the success subtype.
func (e *ResultEvent) Success() bool {
	return e.Subtype == ResultSuccess
}

// SystemEvent is runtime metadata such as the init handshake.
type SystemEvent struct {
	Subtype    string
	SessionID  string
	Model      string
	Tools      []string
	MCPServers []MCPServerStatus
}

// MCPServerStatus is the connection state the runtime reports per provider.
type MCPServerStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// UnknownEvent keeps events this client does not understand so consumers
// can ignore them without failing.
type UnknownEvent struct {
	Type EventType
	Raw  json.RawMessage
}

func (*AssistantEvent) EventType() EventType { return EventAssistant }
func (*ResultEvent) EventType() EventType    { return EventResult }
func (*SystemEvent) EventType() EventType    { return EventSystem }
func (e *UnknownEvent) EventType() EventType { return e.Type }

// wireEvent mirrors one stream-json line.
type wireEvent struct {
	Type      EventType `json:"type"`
	Subtype   string    `json:"subtype,omitempty"`
	SessionID string    `json:"session_id,omitempty"`

	Message *struct {
		Content []ContentBlock `json:"content"`
	} `json:"message,omitempty"`

	IsError      bool            `json:"is_error,omitempty"`
	Errors       json.RawMessage `json:"errors,omitempty"`
	Result       string          `json:"result,omitempty"`
	NumTurns     int             `json:"num_turns,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	TotalCostUSD float64         `json:"total_cost_usd,omitempty"`

	Model      string            `json:"model,omitempty"`
	Tools      []string          `json:"tools,omitempty"`
	MCPServers []MCPServerStatus `json:"mcp_servers,omitempty"`
}

// DecodeEvent parses one stream-json line.
func DecodeEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch w.Type {
	case EventAssistant:
		ev := &AssistantEvent{SessionID: w.SessionID}
		if w.Message != nil {
			ev.Content = w.Message.Content
		}
		return ev, nil
	case EventResult:
		return &ResultEvent{
			Subtype:      w.Subtype,
			IsError:      w.IsError,
			Errors:       decodeErrors(w.Errors),
			Result:       w.Result,
			NumTurns:     w.NumTurns,
			DurationMS:   w.DurationMS,
			TotalCostUSD: w.TotalCostUSD,
			SessionID:    w.SessionID,
		}, nil
	case EventSystem:
		return &SystemEvent{
			Subtype:    w.Subtype,
			SessionID:  w.SessionID,
			Model:      w.Model,
			Tools:      w.Tools,
			MCPServers: w.MCPServers,
		}, nil
	case "":
		return nil, fmt.Errorf("decode event: missing type")
	default:
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		return &UnknownEvent{Type: w.Type, Raw: raw}, nil
	}
}

// decodeErrors accepts a list of strings, a single string, or any other JSON
// value, which is kept as its compact text.
func decodeErrors(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	return []string{string(raw)}
}
