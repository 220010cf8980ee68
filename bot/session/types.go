// Package session tracks per-conversation dialog state for the bot. A
// non-idle state marks the conversation as mid-flow; commands reset it.
package session

// State identifies a step of the conversation state machine.
type State string

const (
	// StateNone indicates there is no active conversation flow.
	StateNone State = "none"
	// StateAskNumber waits for the destination phone number of a relay message.
	StateAskNumber State = "ask_number"
	// StateAskMessage waits for the relay message body.
	StateAskMessage State = "ask_message"
	// StateAskDownloadURL waits for a URL to fetch and send back.
	StateAskDownloadURL State = "ask_download_url"
	// StateWaitUploadFile waits for an attachment to bind to a PIN.
	StateWaitUploadFile State = "wait_upload_file"
	// StateAskPin waits for a PIN to redeem.
	StateAskPin State = "ask_pin"
	// StateAskAIQuery waits for a free-text AI query.
	StateAskAIQuery State = "ask_ai_query"
	// StateAskYTURL is retained for sessions persisted by older deployments;
	// the YouTube capability is disabled and the state resolves to an
	// unavailable notice.
	StateAskYTURL State = "ask_yt_url"
)

// PendingNumber is the pending-data key holding a phone number collected
// between the ask-number and ask-message steps.
const PendingNumber = "number"

// Session stores conversation state and temporary data for one chat.
type Session struct {
	State   State
	Pending map[string]string
}

// NewSession returns an idle session with empty pending data.
func NewSession() Session {
	return Session{State: StateNone, Pending: make(map[string]string)}
}

// Manager orchestrates chat sessions and state transitions. Implementations
// must isolate chats from each other: an operation for one chat id never
// affects another.
type Manager interface {
	// Get returns the session for a chat, or a default idle session.
	Get(chatID int64) Session
	// SetState updates the dialog state, creating the session if needed.
	SetState(chatID int64, st State)
	// SetPending stores a temporary key/value pair for the chat.
	SetPending(chatID int64, key, value string)
	// Pending retrieves a temporary value by key.
	Pending(chatID int64, key string) (string, bool)
	// Clear resets the chat to the idle state and empties pending data.
	Clear(chatID int64)
	// InProgress reports whether the chat has an active non-idle state.
	InProgress(chatID int64) bool
}
