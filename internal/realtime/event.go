package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAnalysisReady       Kind = "analysisReady"
	KindConversationMessage Kind = "conversationMessage"
)

// Event is addressed either to one user (ForUser) or to everyone
// subscribed to a conversation (ConversationID).
type Event struct {
	Kind           Kind      `json:"kind"`
	ForUser        uuid.UUID `json:"forUser,omitzero"`
	ConversationID string    `json:"conversationId,omitempty"`
	Data           any       `json:"data,omitempty"`
	At             time.Time `json:"at"`
}

type AnalysisReadyData struct {
	ForUser   uuid.UUID `json:"forUser"`
	AboutUser uuid.UUID `json:"aboutUser"`
	Snippet   string    `json:"snippet"`
}

func AnalysisReady(forUser, aboutUser uuid.UUID, snippet string) Event {
	return Event{
		Kind:    KindAnalysisReady,
		ForUser: forUser,
		Data: AnalysisReadyData{
			ForUser:   forUser,
			AboutUser: aboutUser,
			Snippet:   snippet,
		},
		At: time.Now().UTC(),
	}
}

func ConversationMessage(conversationID string, data any) Event {
	return Event{
		Kind:           KindConversationMessage,
		ConversationID: conversationID,
		Data:           data,
		At:             time.Now().UTC(),
	}
}

// encodeFrame renders ev as a socket receives it: the kind next to the
// payload's own fields, e.g. {"kind":"analysisReady","forUser":...,
// "aboutUser":...,"snippet":...}. A payload that is not a JSON object is
// carried under "data".
func encodeFrame(ev Event) ([]byte, error) {
	frame := map[string]any{}
	if ev.Data != nil {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) == nil && fields != nil {
			for k, v := range fields {
				frame[k] = v
			}
		} else {
			frame["data"] = json.RawMessage(raw)
		}
	}
	frame["kind"] = ev.Kind
	if ev.ConversationID != "" {
		frame["conversationId"] = ev.ConversationID
	}
	return json.Marshal(frame)
}
