package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pasindu8/telegrambot/bot/fetch"
	"github.com/pasindu8/telegrambot/bot/files"
	"github.com/pasindu8/telegrambot/bot/session"
)

type stubRelay struct {
	err     error
	numbers []string
	bodies  []string
}

func (s *stubRelay) Send(_ context.Context, number, message string) error {
	s.numbers = append(s.numbers, number)
	s.bodies = append(s.bodies, message)
	return s.err
}

type stubAI struct {
	answer string
	err    error
	asked  []string
}

func (s *stubAI) Complete(_ context.Context, query string) (string, error) {
	s.asked = append(s.asked, query)
	return s.answer, s.err
}

type stubFetcher struct {
	result *fetch.Result
	err    error
	urls   []string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Result, error) {
	s.urls = append(s.urls, rawURL)
	return s.result, s.err
}

type stubExchange struct {
	pin        string
	bindErr    error
	record     files.Record
	resolveErr error
	bound      []files.Upload
	resolved   []string
}

func (s *stubExchange) Bind(_ context.Context, up files.Upload) (string, error) {
	s.bound = append(s.bound, up)
	return s.pin, s.bindErr
}

func (s *stubExchange) Resolve(_ context.Context, pin string) (files.Record, error) {
	s.resolved = append(s.resolved, files.NormalizePin(pin))
	return s.record, s.resolveErr
}

func command(chatID int64, cmd string) Event {
	return Event{ChatID: chatID, SenderID: chatID, Kind: EventCommand, Command: cmd, Text: cmd}
}

func text(chatID int64, body string) Event {
	return Event{ChatID: chatID, SenderID: chatID, Kind: EventText, Text: body}
}

func newTestRouter(opts Options) (*Router, session.Manager) {
	sessions := session.NewMemoryManager(0)
	opts.Sessions = sessions
	return NewRouter(opts), sessions
}

func TestSendMessageScenario(t *testing.T) {
	relay := &stubRelay{}
	r, sessions := newTestRouter(Options{Relay: relay})
	ctx := context.Background()

	rep := r.Handle(ctx, command(1, "/sendmsg"))
	require.Equal(t, replyAskNumber, rep.Text)
	require.Equal(t, session.StateAskNumber, sessions.Get(1).State)

	rep = r.Handle(ctx, text(1, "94712345678"))
	require.Equal(t, replyAskMessage, rep.Text)
	require.Equal(t, session.StateAskMessage, sessions.Get(1).State)

	rep = r.Handle(ctx, text(1, "hello"))
	require.Equal(t, replyRelaySent, rep.Text)
	require.Equal(t, session.StateNone, sessions.Get(1).State)

	require.Equal(t, []string{"94712345678"}, relay.numbers)
	require.Equal(t, []string{"hello"}, relay.bodies)
	_, hasPending := sessions.Pending(1, session.PendingNumber)
	require.False(t, hasPending)
}

func TestAskNumberRepromptsOnBadInput(t *testing.T) {
	r, sessions := newTestRouter(Options{Relay: &stubRelay{}})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/sendmsg"))
	for _, bad := range []string{"12345", "not a number", "9471234567a", ""} {
		rep := r.Handle(ctx, text(1, bad))
		require.Equal(t, replyBadNumber, rep.Text, bad)
		require.Equal(t, session.StateAskNumber, sessions.Get(1).State, bad)
	}
}

func TestRelayFailureClearsState(t *testing.T) {
	relay := &stubRelay{err: errors.New("boom")}
	r, sessions := newTestRouter(Options{Relay: relay})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/sendmsg"))
	r.Handle(ctx, text(1, "94712345678"))
	rep := r.Handle(ctx, text(1, "hello"))

	require.Equal(t, replyRelayFailed, rep.Text)
	require.Equal(t, session.StateNone, sessions.Get(1).State)
}

func TestCommandOverridesQuestionState(t *testing.T) {
	r, sessions := newTestRouter(Options{Relay: &stubRelay{}, Exchange: &stubExchange{}})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/sendmsg"))
	r.Handle(ctx, text(1, "94712345678"))
	require.Equal(t, session.StateAskMessage, sessions.Get(1).State)

	rep := r.Handle(ctx, command(1, "/get_file"))
	require.Equal(t, replyAskPin, rep.Text)
	require.Equal(t, session.StateAskPin, sessions.Get(1).State)

	_, hasPending := sessions.Pending(1, session.PendingNumber)
	require.False(t, hasPending)
}

func TestCancelFromEveryState(t *testing.T) {
	starts := map[string]session.State{
		"/sendmsg":      session.StateAskNumber,
		"/download_url": session.StateAskDownloadURL,
		"/upload_file":  session.StateWaitUploadFile,
		"/get_file":     session.StateAskPin,
		"/ask_ai":       session.StateAskAIQuery,
	}
	ctx := context.Background()
	for cmd, want := range starts {
		r, sessions := newTestRouter(Options{
			Relay:    &stubRelay{},
			Exchange: &stubExchange{},
			AI:       &stubAI{},
		})
		r.Handle(ctx, command(1, cmd))
		require.Equal(t, want, sessions.Get(1).State, cmd)

		rep := r.Handle(ctx, command(1, "/cancel"))
		require.Equal(t, replyCancelled, rep.Text, cmd)
		require.Equal(t, session.StateNone, sessions.Get(1).State, cmd)

		rep = r.Handle(ctx, command(1, "/cancel"))
		require.Equal(t, replyNothingActive, rep.Text, cmd)
	}
}

func TestStateIsolationBetweenChats(t *testing.T) {
	r, sessions := newTestRouter(Options{Relay: &stubRelay{}, Exchange: &stubExchange{pin: "AB12CD"}})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/sendmsg"))
	r.Handle(ctx, command(2, "/get_file"))

	require.Equal(t, session.StateAskNumber, sessions.Get(1).State)
	require.Equal(t, session.StateAskPin, sessions.Get(2).State)

	r.Handle(ctx, text(1, "94712345678"))
	require.Equal(t, session.StateAskMessage, sessions.Get(1).State)
	require.Equal(t, session.StateAskPin, sessions.Get(2).State)
}

func TestUploadFlow(t *testing.T) {
	exchange := &stubExchange{pin: "AB12CD"}
	r, sessions := newTestRouter(Options{Exchange: exchange})
	ctx := context.Background()

	r.Handle(ctx, command(7, "/upload_file"))
	require.Equal(t, session.StateWaitUploadFile, sessions.Get(7).State)

	rep := r.Handle(ctx, text(7, "here it comes"))
	require.Equal(t, replyNeedAttachment, rep.Text)
	require.Equal(t, session.StateWaitUploadFile, sessions.Get(7).State)

	rep = r.Handle(ctx, Event{
		ChatID:   7,
		SenderID: 7,
		Kind:     EventAttachment,
		Attachment: &Attachment{
			Kind:   files.KindDocument,
			FileID: "file-ref-1",
			Name:   "notes.txt",
			MIME:   "text/plain",
			Size:   1024,
		},
	})
	require.Equal(t, replyPinIssued("AB12CD"), rep.Text)
	require.Equal(t, session.StateNone, sessions.Get(7).State)

	require.Len(t, exchange.bound, 1)
	require.Equal(t, "file-ref-1", exchange.bound[0].FileID)
	require.Equal(t, int64(7), exchange.bound[0].OwnerID)
}

func TestUploadRejectsOversizedAttachment(t *testing.T) {
	exchange := &stubExchange{}
	r, sessions := newTestRouter(Options{Exchange: exchange})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/upload_file"))
	rep := r.Handle(ctx, Event{
		ChatID:     1,
		Kind:       EventAttachment,
		Attachment: &Attachment{Kind: files.KindVideo, FileID: "v", Size: files.MaxTransferBytes + 1},
	})
	require.Contains(t, rep.Text, fmt.Sprintf("%d bytes", int64(files.MaxTransferBytes)+1))
	require.Equal(t, session.StateNone, sessions.Get(1).State)
	require.Empty(t, exchange.bound)
}

func TestGetFileFlow(t *testing.T) {
	rec := files.Record{Pin: "AB12CD", FileID: "stored-ref", DisplayName: "notes.txt", Kind: files.KindDocument, SizeBytes: 2048}
	exchange := &stubExchange{record: rec}
	r, sessions := newTestRouter(Options{Exchange: exchange})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/get_file"))
	rep := r.Handle(ctx, text(1, " ab12cd "))

	require.NotNil(t, rep.Record)
	require.Equal(t, "stored-ref", rep.Record.FileID)
	require.Equal(t, session.StateNone, sessions.Get(1).State)
	require.Equal(t, []string{"AB12CD"}, exchange.resolved)
}

func TestGetFileInvalidPin(t *testing.T) {
	exchange := &stubExchange{resolveErr: files.ErrNotFound}
	r, sessions := newTestRouter(Options{Exchange: exchange})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/get_file"))
	rep := r.Handle(ctx, text(1, "ZZZZZZ"))

	require.Equal(t, replyInvalidPin, rep.Text)
	require.Nil(t, rep.Record)
	require.Equal(t, session.StateNone, sessions.Get(1).State)
}

func TestGetFileOversizedRecord(t *testing.T) {
	exchange := &stubExchange{resolveErr: &files.OversizedError{SizeBytes: files.MaxTransferBytes + 5}}
	r, _ := newTestRouter(Options{Exchange: exchange})

	r.Handle(context.Background(), command(1, "/get_file"))
	rep := r.Handle(context.Background(), text(1, "AB12CD"))

	require.Nil(t, rep.Record)
	require.Contains(t, rep.Text, "too large")
}

func TestDownloadURLFlow(t *testing.T) {
	fetcher := &stubFetcher{result: &fetch.Result{Data: []byte("payload"), Name: "a.bin", MimeType: "application/octet-stream", Size: 7}}
	r, sessions := newTestRouter(Options{Fetcher: fetcher})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/download_url"))

	rep := r.Handle(ctx, text(1, "ftp://example.com/a.bin"))
	require.Equal(t, replyBadURL, rep.Text)
	require.Equal(t, session.StateAskDownloadURL, sessions.Get(1).State)

	rep = r.Handle(ctx, text(1, "https://example.com/a.bin"))
	require.NotNil(t, rep.Download)
	require.Equal(t, []byte("payload"), rep.Download.Data)
	require.Equal(t, "a.bin", rep.Download.Name)
	require.Equal(t, session.StateNone, sessions.Get(1).State)
}

func TestDownloadURLTooLarge(t *testing.T) {
	fetcher := &stubFetcher{err: &fetch.TooLargeError{SizeBytes: files.MaxTransferBytes}}
	r, sessions := newTestRouter(Options{Fetcher: fetcher})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/download_url"))
	rep := r.Handle(ctx, text(1, "https://example.com/huge.iso"))

	require.Nil(t, rep.Download)
	require.Contains(t, rep.Text, "too large")
	require.Equal(t, session.StateNone, sessions.Get(1).State)
}

func TestAskAIFlow(t *testing.T) {
	ai := &stubAI{answer: "42"}
	r, sessions := newTestRouter(Options{AI: ai})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/ask_ai"))
	rep := r.Handle(ctx, text(1, "meaning of life?"))

	require.Equal(t, "42", rep.Text)
	require.Equal(t, []string{"meaning of life?"}, ai.asked)
	require.Equal(t, session.StateNone, sessions.Get(1).State)
}

func TestAvailabilityGuards(t *testing.T) {
	r, sessions := newTestRouter(Options{Relay: &stubRelay{}})
	ctx := context.Background()

	for _, cmd := range []string{"/upload_file", "/get_file", "/ask_ai"} {
		rep := r.Handle(ctx, command(1, cmd))
		require.Equal(t, replyUnavailable, rep.Text, cmd)
		require.Equal(t, session.StateNone, sessions.Get(1).State, cmd)
	}
}

func TestIdleFallbacks(t *testing.T) {
	r, _ := newTestRouter(Options{})
	ctx := context.Background()

	rep := r.Handle(ctx, text(1, "hello there"))
	require.Equal(t, replyNotUnderstood, rep.Text)

	rep = r.Handle(ctx, Event{ChatID: 1, Kind: EventAttachment, Attachment: &Attachment{Kind: files.KindPhoto, FileID: "p"}})
	require.Equal(t, replyUseUpload, rep.Text)

	rep = r.Handle(ctx, command(1, "/bogus"))
	require.Equal(t, replyUnrecognized, rep.Text)

	rep = r.Handle(ctx, command(1, "/yt_download"))
	require.Equal(t, replyYTUnavailable, rep.Text)

	rep = r.Handle(ctx, command(1, "/start"))
	require.True(t, strings.HasPrefix(rep.Text, "Hi!"))
}

func TestUnrecognizedCommandResetsFlow(t *testing.T) {
	r, sessions := newTestRouter(Options{Relay: &stubRelay{}})
	ctx := context.Background()

	r.Handle(ctx, command(1, "/sendmsg"))
	rep := r.Handle(ctx, command(1, "/bogus"))

	require.Equal(t, replyUnrecognized, rep.Text)
	require.Equal(t, session.StateNone, sessions.Get(1).State)
}
