// Package flow implements the conversation state machine: it maps the current
// session state and one inbound event onto the next state, at most one
// downstream action and one reply.
package flow

import "github.com/pasindu8/telegrambot/bot/files"

// EventKind classifies an inbound chat event.
type EventKind string

const (
	// EventCommand is a message whose first token starts with "/".
	EventCommand EventKind = "command"
	// EventText is any other plain-text message.
	EventText EventKind = "text"
	// EventAttachment is a message carrying a file payload.
	EventAttachment EventKind = "attachment"
)

// Attachment is the transport-independent view of an inbound file.
type Attachment struct {
	Kind   files.Kind
	FileID string
	Name   string
	MIME   string
	Size   int64
}

// Event is one inbound chat event, already stripped of transport details.
type Event struct {
	ChatID     int64
	SenderID   int64
	Kind       EventKind
	Command    string
	Text       string
	Attachment *Attachment
}

// Reply is the outcome of handling one event. Exactly one field is set: Text
// is an outbound message, Record asks the transport to resend a stored file by
// reference, Download asks it to send freshly fetched bytes.
type Reply struct {
	Text     string
	Record   *files.Record
	Download *Download
}

// Download carries fetched bytes ready to be sent back as a file.
type Download struct {
	Data     []byte
	Name     string
	MimeType string
}
