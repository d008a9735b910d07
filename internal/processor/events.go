package processor

import "github.com/xaenox/interview-ranker/internal/models"

// Event type names as they appear on the wire
const (
	TypeConversationUpdate = "conversation-update"
	TypeSpeechStart        = "speech-start"
	TypeSpeechEnd          = "speech-end"
	TypeError              = "error"
	TypeCallStart          = "call-start"
	TypeCallEnd            = "call-end"
)

// Event is a transport event. The set of implementations is closed.
type Event interface {
	Type() string
	sealed()
}

// ConversationUpdate carries the whole transcript so far, not a delta.
type ConversationUpdate struct {
	Conversation []models.Message
}

type SpeechStart struct {
	Role models.Role
}

type SpeechEnd struct {
	Role models.Role
}

// TransportError reports a failure inside the call transport.
type TransportError struct {
	Message string
}

type CallStart struct{}

// CallEnd ends the active call. A non-empty SessionID restricts it to that
// session, so a stale sender cannot end a newer call.
type CallEnd struct {
	Reason    string
	SessionID string
}

func (ConversationUpdate) Type() string { return TypeConversationUpdate }
func (SpeechStart) Type() string        { return TypeSpeechStart }
func (SpeechEnd) Type() string          { return TypeSpeechEnd }
func (TransportError) Type() string     { return TypeError }
func (CallStart) Type() string          { return TypeCallStart }
func (CallEnd) Type() string            { return TypeCallEnd }

func (ConversationUpdate) sealed() {}
func (SpeechStart) sealed()        {}
func (SpeechEnd) sealed()          {}
func (TransportError) sealed()     {}
func (CallStart) sealed()          {}
func (CallEnd) sealed()            {}
