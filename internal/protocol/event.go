package protocol

import (
	"encoding/json"
	"fmt"
)

// Component kinds found in chat events
const (
	ComponentText  = "text"
	ComponentImage = "image"
	ComponentAt    = "at"
)

// Component is one typed part of a chat message.
//
// Only the fields relevant to Kind are encoded:
//
//	text:  {"type":"text","content":...}
//	image: {"type":"image","url":...}
//	at:    {"type":"at","target":...,"name":...}
type Component struct {
	Kind    string
	Content string
	URL     string
	Target  string
	Name    string
}

// Text returns a text component.
func Text(content string) Component {
	return Component{Kind: ComponentText, Content: content}
}

// Image returns an image component.
func Image(url string) Component {
	return Component{Kind: ComponentImage, URL: url}
}

// Mention returns an "at" component addressing target.
func Mention(target, name string) Component {
	return Component{Kind: ComponentAt, Target: target, Name: name}
}

// MarshalJSON implements json.Marshaler.
func (c Component) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ComponentText:
		return json.Marshal(struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}{c.Kind, c.Content})
	case ComponentImage:
		return json.Marshal(struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		}{c.Kind, c.URL})
	case ComponentAt:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Target string `json:"target"`
			Name   string `json:"name"`
		}{c.Kind, c.Target, c.Name})
	default:
		return nil, fmt.Errorf("unknown component type %q", c.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Component) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Content string          `json:"content"`
		URL     string          `json:"url"`
		Target  json.RawMessage `json:"target"`
		Name    string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case ComponentText, ComponentImage, ComponentAt:
	default:
		return fmt.Errorf("unknown component type %q", raw.Type)
	}

	*c = Component{
		Kind:    raw.Type,
		Content: raw.Content,
		URL:     raw.URL,
		Target:  targetString(raw.Target),
		Name:    raw.Name,
	}
	return nil
}

// targetString accepts mention targets given as either strings or numbers;
// chat platforms disagree on which.
func targetString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ChatEvent is a normalized chat platform event handed to the relay by the
// platform integration.
type ChatEvent struct {
	Platform    string      `json:"platform"`
	SenderID    string      `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	Text        string      `json:"message_text"`
	MessageKind string      `json:"message_type"`
	GroupID     string      `json:"group_id,omitempty"`
	IsPrivate   bool        `json:"is_private"`
	IsAdmin     bool        `json:"is_admin"`
	Components  []Component `json:"components"`
}

// ChatMessage is the astrbot_message frame forwarded to devices.
type ChatMessage struct {
	Platform    string      `json:"platform"`
	SenderID    string      `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	MessageText string      `json:"message_text"`
	MessageKind string      `json:"message_type"`
	GroupID     *string     `json:"group_id"`
	Timestamp   Timestamp   `json:"timestamp"`
	IsPrivate   bool        `json:"is_private"`
	IsAdmin     bool        `json:"is_admin"`
	Components  []Component `json:"components"`
}

// NewChatMessage maps an event onto its wire form. Components are copied
// verbatim and in order; an empty group id becomes JSON null.
func NewChatMessage(ev ChatEvent, ts Timestamp) ChatMessage {
	msg := ChatMessage{
		Platform:    ev.Platform,
		SenderID:    ev.SenderID,
		SenderName:  ev.SenderName,
		MessageText: ev.Text,
		MessageKind: ev.MessageKind,
		Timestamp:   ts,
		IsPrivate:   ev.IsPrivate,
		IsAdmin:     ev.IsAdmin,
		Components:  make([]Component, len(ev.Components)),
	}
	copy(msg.Components, ev.Components)
	if ev.GroupID != "" {
		group := ev.GroupID
		msg.GroupID = &group
	}
	return msg
}
