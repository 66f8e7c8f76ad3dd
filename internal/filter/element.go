package filter

import (
	"tsgate/internal/storemodel"
)

// Element is the lazily-evaluated surface a Filter matches against.
// Accessors return ok=false when the element simply doesn't carry that
// dimension (e.g. a raw Message has no event text), in which case the
// owning filter is skipped rather than forced to fail.
type Element interface {
	EventText() (string, bool)
	MessageType() (string, bool)
	MessageBodyText() (func() (string, bool))
	MessageBodyBinary() (func() ([]byte, bool))
	AttachedMessageIds() ([]string, bool)
	AttachedEventIds() ([]string, bool)
	ParentEventId() (string, bool)
}

// EventElement adapts a SingleEvent, plus whatever ids it is known to carry
// attached, to the Element contract.
type EventElement struct {
	Event           storemodel.SingleEvent
	AttachedMsgIds  []string
	AttachedEvtIds  []string
}

func (e EventElement) EventText() (string, bool) {
	if e.Event.Content == nil {
		return string(e.Event.Id) + " " + string(e.Event.ParentId), true
	}
	return e.Event.Content.Name + " " + e.Event.Content.Type + " " + string(e.Event.Content.Body), true
}

func (e EventElement) MessageType() (string, bool) { return "", false }

func (e EventElement) MessageBodyText() func() (string, bool) {
	return func() (string, bool) { return "", false }
}

func (e EventElement) MessageBodyBinary() func() ([]byte, bool) {
	return func() ([]byte, bool) { return nil, false }
}

func (e EventElement) AttachedMessageIds() ([]string, bool) {
	if e.AttachedMsgIds == nil {
		return nil, false
	}
	return e.AttachedMsgIds, true
}

func (e EventElement) AttachedEventIds() ([]string, bool) {
	if e.AttachedEvtIds == nil {
		return nil, false
	}
	return e.AttachedEvtIds, true
}

func (e EventElement) ParentEventId() (string, bool) {
	if !e.Event.HasParent() {
		return "", false
	}
	return string(e.Event.ParentId), true
}

// MessageElement adapts a Message, plus the id of any event it is attached
// to, to the Element contract.
type MessageElement struct {
	Message        storemodel.Message
	AttachedEvtIds []string
	ParentEvtId    string
}

func (m MessageElement) EventText() (string, bool) { return "", false }

func (m MessageElement) MessageType() (string, bool) {
	if m.Message.DecodedType == "" {
		return "", false
	}
	return m.Message.DecodedType, true
}

func (m MessageElement) MessageBodyText() func() (string, bool) {
	return func() (string, bool) {
		if len(m.Message.DecodedBody) == 0 {
			return "", false
		}
		return string(m.Message.DecodedBody), true
	}
}

func (m MessageElement) MessageBodyBinary() func() ([]byte, bool) {
	return func() ([]byte, bool) {
		if len(m.Message.DecodedBody) == 0 {
			return nil, false
		}
		return m.Message.DecodedBody, true
	}
}

func (m MessageElement) AttachedMessageIds() ([]string, bool) { return nil, false }

func (m MessageElement) AttachedEventIds() ([]string, bool) {
	if m.AttachedEvtIds == nil {
		return nil, false
	}
	return m.AttachedEvtIds, true
}

func (m MessageElement) ParentEventId() (string, bool) {
	if m.ParentEvtId == "" {
		return "", false
	}
	return m.ParentEvtId, true
}
