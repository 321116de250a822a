package model

// StreamEventKind tags the variants of StreamEvent.
type StreamEventKind string

const (
	EventStatus StreamEventKind = "status"
	EventDelta  StreamEventKind = "delta"
	EventDone   StreamEventKind = "done"
	EventError  StreamEventKind = "error"
)

// StreamEvent is one item of a streamed answer. Stage, Message and Excerpt
// are set for status events, Text for deltas, Message for errors.
type StreamEvent struct {
	Kind    StreamEventKind
	Stage   string
	Message string
	Excerpt string
	Text    string
}

func StatusEvent(stage, message, excerpt string) StreamEvent {
	return StreamEvent{Kind: EventStatus, Stage: stage, Message: message, Excerpt: excerpt}
}

func DeltaEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

func DoneEvent() StreamEvent {
	return StreamEvent{Kind: EventDone}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message}
}
