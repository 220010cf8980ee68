package flow

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/pasindu8/telegrambot/bot/fetch"
	"github.com/pasindu8/telegrambot/bot/files"
	"github.com/pasindu8/telegrambot/bot/session"
	"github.com/pasindu8/telegrambot/core/logger"
)

// DefaultCallTimeout bounds each downstream call made while handling one event.
const DefaultCallTimeout = 20 * time.Second

var numberPattern = regexp.MustCompile(`^\d{10,}$`)

// Messenger delivers a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, number, message string) error
}

// Completer answers a free-text query.
type Completer interface {
	Complete(ctx context.Context, query string) (string, error)
}

// Downloader fetches a URL into memory.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// FileExchange binds uploads to PINs and resolves PINs back to records.
type FileExchange interface {
	Bind(ctx context.Context, up files.Upload) (string, error)
	Resolve(ctx context.Context, pin string) (files.Record, error)
}

// Options wires the router's collaborators. A nil capability field marks that
// capability unavailable; the router degrades to "unavailable" replies for it.
type Options struct {
	Sessions session.Manager
	Exchange FileExchange
	Relay    Messenger
	AI       Completer
	Fetcher  Downloader
	Timeout  time.Duration
}

// Router is the finite-state dispatcher for inbound chat events.
type Router struct {
	sessions session.Manager
	exchange FileExchange
	relay    Messenger
	ai       Completer
	fetcher  Downloader
	timeout  time.Duration
}

// NewRouter builds a Router. Options.Sessions is required.
func NewRouter(opts Options) *Router {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Router{
		sessions: opts.Sessions,
		exchange: opts.Exchange,
		relay:    opts.Relay,
		ai:       opts.AI,
		fetcher:  opts.Fetcher,
		timeout:  timeout,
	}
}

// commandRule describes a flow-starting command: the state it enters, the
// question it asks, and the capability it needs.
type commandRule struct {
	next     session.State
	prompt   string
	requires func(*Router) bool
}

func always(*Router) bool        { return true }
func hasExchange(r *Router) bool { return r.exchange != nil }
func hasAI(r *Router) bool       { return r.ai != nil }

var commandTable = map[string]commandRule{
	"/sendmsg":      {next: session.StateAskNumber, prompt: replyAskNumber, requires: always},
	"/download_url": {next: session.StateAskDownloadURL, prompt: replyAskDownloadURL, requires: always},
	"/upload_file":  {next: session.StateWaitUploadFile, prompt: replyAskUpload, requires: hasExchange},
	"/get_file":     {next: session.StateAskPin, prompt: replyAskPin, requires: hasExchange},
	"/ask_ai":       {next: session.StateAskAIQuery, prompt: replyAskAIQuery, requires: hasAI},
}

// stateTable maps each question state to its answer handler. Every state in
// the session enumeration has exactly one row.
var stateTable = map[session.State]func(*Router, context.Context, Event) Reply{
	session.StateAskNumber:      (*Router).handleAskNumber,
	session.StateAskMessage:     (*Router).handleAskMessage,
	session.StateAskDownloadURL: (*Router).handleAskDownloadURL,
	session.StateWaitUploadFile: (*Router).handleWaitUpload,
	session.StateAskPin:         (*Router).handleAskPin,
	session.StateAskAIQuery:     (*Router).handleAskAIQuery,
	session.StateAskYTURL:       (*Router).handleAskYTURL,
}

// Handle processes one inbound event and returns the reply to emit. Commands
// always take precedence over a pending question, so a user can escape any
// flow by issuing a new command.
func (r *Router) Handle(ctx context.Context, ev Event) Reply {
	if ev.Kind == EventCommand {
		return r.handleCommand(ctx, ev)
	}
	st := r.sessions.Get(ev.ChatID).State
	if st != session.StateNone {
		if h, ok := stateTable[st]; ok {
			return h(r, ctx, ev)
		}
		// Unknown persisted state, likely from an older deployment.
		r.sessions.Clear(ev.ChatID)
	}
	if ev.Kind == EventAttachment {
		return Reply{Text: replyUseUpload}
	}
	return Reply{Text: replyNotUnderstood}
}

func (r *Router) handleCommand(ctx context.Context, ev Event) Reply {
	switch ev.Command {
	case "/start":
		r.sessions.Clear(ev.ChatID)
		return Reply{Text: replyHelp}
	case "/cancel":
		active := r.sessions.InProgress(ev.ChatID)
		r.sessions.Clear(ev.ChatID)
		if !active {
			return Reply{Text: replyNothingActive}
		}
		return Reply{Text: replyCancelled}
	case "/yt_download":
		r.sessions.Clear(ev.ChatID)
		return Reply{Text: replyYTUnavailable}
	}

	rule, ok := commandTable[ev.Command]
	if !ok {
		r.sessions.Clear(ev.ChatID)
		return Reply{Text: replyUnrecognized}
	}
	if !rule.requires(r) {
		r.sessions.Clear(ev.ChatID)
		return Reply{Text: replyUnavailable}
	}

	prev := r.sessions.Get(ev.ChatID).State
	r.sessions.Clear(ev.ChatID)
	r.sessions.SetState(ev.ChatID, rule.next)
	logger.Debug(ctx, "tg", "flow.start",
		slog.String("command", ev.Command),
		slog.String("state", string(prev)),
		slog.String("next_state", string(rule.next)),
	)
	return Reply{Text: rule.prompt}
}

func (r *Router) handleAskNumber(_ context.Context, ev Event) Reply {
	number := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || !numberPattern.MatchString(number) {
		return Reply{Text: replyBadNumber}
	}
	r.sessions.SetPending(ev.ChatID, session.PendingNumber, number)
	r.sessions.SetState(ev.ChatID, session.StateAskMessage)
	return Reply{Text: replyAskMessage}
}

func (r *Router) handleAskMessage(ctx context.Context, ev Event) Reply {
	defer r.sessions.Clear(ev.ChatID)

	if ev.Kind != EventText {
		return Reply{Text: replyRelayFailed}
	}
	number, ok := r.sessions.Pending(ev.ChatID, session.PendingNumber)
	if !ok || r.relay == nil {
		return Reply{Text: replyUnavailable}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.relay.Send(callCtx, number, ev.Text); err != nil {
		logger.Warn(ctx, "relay", "send.fail",
			slog.Int("number_len", len(number)),
			slog.String("err", err.Error()),
		)
		return Reply{Text: replyRelayFailed}
	}
	return Reply{Text: replyRelaySent}
}

func (r *Router) handleAskDownloadURL(ctx context.Context, ev Event) Reply {
	rawURL := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || !fetch.ValidURL(rawURL) {
		return Reply{Text: replyBadURL}
	}
	defer r.sessions.Clear(ev.ChatID)

	if r.fetcher == nil {
		return Reply{Text: replyUnavailable}
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.fetcher.Fetch(callCtx, rawURL)
	if err != nil {
		var tooLarge *fetch.TooLargeError
		if errors.As(err, &tooLarge) {
			return Reply{Text: replyOversized(tooLarge.SizeBytes)}
		}
		logger.Warn(ctx, "files", "fetch.fail",
			slog.String("url", logger.SanitizeLimit(rawURL, 80)),
			slog.String("err", err.Error()),
		)
		return Reply{Text: replyFetchFailed}
	}
	return Reply{Download: &Download{Data: res.Data, Name: res.Name, MimeType: res.MimeType}}
}

func (r *Router) handleWaitUpload(ctx context.Context, ev Event) Reply {
	if ev.Attachment == nil {
		return Reply{Text: replyNeedAttachment}
	}
	defer r.sessions.Clear(ev.ChatID)

	// Persisted sessions can outlive a capability: a chat left in this state
	// before the store was disabled still needs a sane answer.
	if r.exchange == nil {
		return Reply{Text: replyUnavailable}
	}

	att := ev.Attachment
	if att.Size > files.MaxTransferBytes {
		return Reply{Text: replyOversized(att.Size)}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pin, err := r.exchange.Bind(callCtx, files.Upload{
		FileID:      att.FileID,
		DisplayName: att.Name,
		MimeType:    att.MIME,
		SizeBytes:   att.Size,
		Kind:        att.Kind,
		OwnerID:     ev.SenderID,
	})
	if err != nil {
		if size, ok := files.IsOversized(err); ok {
			return Reply{Text: replyOversized(size)}
		}
		if errors.Is(err, files.ErrStoreUnavailable) {
			return Reply{Text: replyUnavailable}
		}
		return Reply{Text: replyUploadFailed}
	}
	return Reply{Text: replyPinIssued(pin)}
}

func (r *Router) handleAskPin(ctx context.Context, ev Event) Reply {
	defer r.sessions.Clear(ev.ChatID)

	if ev.Kind != EventText {
		return Reply{Text: replyInvalidPin}
	}
	if r.exchange == nil {
		return Reply{Text: replyUnavailable}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := r.exchange.Resolve(callCtx, ev.Text)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return Reply{Text: replyInvalidPin}
		}
		if size, ok := files.IsOversized(err); ok {
			return Reply{Text: replyOversized(size)}
		}
		return Reply{Text: replyUnavailable}
	}
	return Reply{Record: &rec}
}

func (r *Router) handleAskAIQuery(ctx context.Context, ev Event) Reply {
	defer r.sessions.Clear(ev.ChatID)

	if ev.Kind != EventText {
		return Reply{Text: replyAIFailed}
	}
	if r.ai == nil {
		return Reply{Text: replyUnavailable}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	answer, err := r.ai.Complete(callCtx, ev.Text)
	if err != nil {
		logger.Warn(ctx, "ai", "complete.fail", slog.String("err", err.Error()))
		return Reply{Text: replyAIFailed}
	}
	return Reply{Text: answer}
}

func (r *Router) handleAskYTURL(_ context.Context, ev Event) Reply {
	r.sessions.Clear(ev.ChatID)
	return Reply{Text: replyYTUnavailable}
}
