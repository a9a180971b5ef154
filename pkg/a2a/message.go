package a2a

import "strings"

// Roles a message can carry. The client always speaks as user, the agent
// answers as agent.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

/*
Message represents all non-artifact communication between client and agent.
*/
type Message struct {
	Role     string         `json:"role"` // "user" or "agent"
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role string, text string) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
	}
}

func NewFileMessage(role string, file *FilePart) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeFile, File: file},
		},
	}
}

func NewDataMessage(role string, data map[string]any) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeData, Data: data},
		},
	}
}

/*
Empty reports whether the message carries no usable content: no text
beyond whitespace, no file content or reference, no data payload.
Submitting an empty message is rejected client-side before it reaches
the wire.
*/
func (msg *Message) Empty() bool {
	if msg == nil {
		return true
	}

	for _, part := range msg.Parts {
		switch part.Type {
		case PartTypeText:
			if strings.TrimSpace(part.Text) != "" {
				return false
			}
		case PartTypeFile:
			if part.File != nil && (part.File.Data != "" || part.File.URI != "") {
				return false
			}
		case PartTypeData:
			if len(part.Data) > 0 {
				return false
			}
		}
	}

	return true
}

// String flattens the text parts, which is all a chat surface can show of
// a status message.
func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String()
}
