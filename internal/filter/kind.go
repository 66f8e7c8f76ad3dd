package filter

// Kind is one of the closed set of predicate kinds spec.md section 4.7
// allows. No other kind may ever be constructed.
type Kind string

const (
	KindEventText         Kind = "eventText"
	KindAttachedMessageId Kind = "attachedMessageId"
	KindAttachedEventId   Kind = "attachedEventId"
	KindMessageType       Kind = "messageType"
	KindMessageBodyText   Kind = "messageBodyText"
	KindMessageBodyBinary Kind = "messageBodyBinary"
	KindParentEvent       Kind = "parentEvent"
	KindAttachedEventIds  Kind = "attachedEventIds"
)

// needsBody is the NEED_BODY signal of spec.md section 4.7: kinds that
// require a materialized message/event body rather than just metadata.
var needsBody = map[Kind]bool{
	KindEventText:         true,
	KindMessageBodyText:   true,
	KindMessageBodyBinary: true,
}

func (k Kind) Valid() bool {
	_, ok := needsBody[k]
	if ok {
		return true
	}
	switch k {
	case KindAttachedMessageId, KindAttachedEventId, KindMessageType, KindParentEvent, KindAttachedEventIds:
		return true
	}
	return false
}

func (k Kind) NeedsBody() bool {
	return needsBody[k]
}
