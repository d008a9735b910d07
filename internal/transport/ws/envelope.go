package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xaenox/interview-ranker/internal/models"
	"github.com/xaenox/interview-ranker/internal/processor"
)

// Outbound message types
const (
	MsgSnapshot = "snapshot"
	MsgError    = "error"
)

var ErrUnknownType = errors.New("unknown event type")

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type conversationPayload struct {
	Conversation []models.Message `json:"conversation"`
}

type speechPayload struct {
	Role models.Role `json:"role"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type callEndPayload struct {
	Reason    string `json:"reason"`
	SessionID string `json:"sessionId"`
}

// DecodeEvent maps one inbound envelope to a processor event.
func DecodeEvent(data []byte) (processor.Event, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch msg.Type {
	case processor.TypeConversationUpdate:
		var p conversationPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return processor.ConversationUpdate{Conversation: p.Conversation}, nil
	case processor.TypeSpeechStart, processor.TypeSpeechEnd:
		var p speechPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if msg.Type == processor.TypeSpeechStart {
			return processor.SpeechStart{Role: p.Role}, nil
		}
		return processor.SpeechEnd{Role: p.Role}, nil
	case processor.TypeError:
		var p errorPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return processor.TransportError{Message: p.Message}, nil
	case processor.TypeCallStart:
		return processor.CallStart{}, nil
	case processor.TypeCallEnd:
		var p callEndPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return processor.CallEnd{Reason: p.Reason, SessionID: p.SessionID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

// decodePayload tolerates a missing payload.
func decodePayload(msg Message, v any) error {
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return nil
}

func encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: data})
}
