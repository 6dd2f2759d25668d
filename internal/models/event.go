package models

// EventType discriminates the frames produced by the query pipeline.
type EventType int

const (
	EventToken EventType = iota
	EventError
	EventDone
)

// Event is one frame of a streamed answer. A stream is a finite sequence of
// token and error events followed by exactly one done event.
type Event struct {
	Type EventType
	Text string
}

func Token(text string) Event { return Event{Type: EventToken, Text: text} }
func Error(msg string) Event  { return Event{Type: EventError, Text: msg} }
func Done() Event             { return Event{Type: EventDone} }
