package cel

// PresetExpressionExamples are sample boolean-composition expressions over
// the closed-set filter.Kind results. No code in the module reads this
// map.
var PresetExpressionExamples = map[string]string{
	"message_with_type":        `messageType`,
	"attached_event_not_parent": `attachedEventId && !parentEvent`,
	"any_attachment":           `attachedMessageId || attachedEventId || attachedEventIds`,
	"body_search":              `messageBodyText || messageBodyBinary`,
	"text_or_type":             `eventText || messageType`,
	"strict_parent_only":       `parentEvent && !attachedEventIds`,
}
