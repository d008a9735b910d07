package models

import "time"

// Role identifies the speaker of a conversation message
type Role string

const (
	RoleSystem     Role = "system"
	RoleAssistant  Role = "assistant"
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleRespondent Role = "respondent"
)

// IsInterviewer reports whether messages with this role can ask questions
func (r Role) IsInterviewer() bool {
	switch r {
	case RoleAssistant, RoleSystem, RoleModerator:
		return true
	}
	return false
}

// IsRespondent reports whether messages with this role carry answers
func (r Role) IsRespondent() bool {
	return r == RoleUser || r == RoleRespondent
}

// Message is a single transcript entry
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Analysis is the complete asked/answered state of a transcript
type Analysis struct {
	AskedQuestions    []int `json:"askedQuestions"`
	AnsweredQuestions []int `json:"answeredQuestions"`
}
