package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/pasindu8/telegrambot/bot/ai"
	"github.com/pasindu8/telegrambot/bot/fetch"
	"github.com/pasindu8/telegrambot/bot/files"
	"github.com/pasindu8/telegrambot/bot/flow"
	"github.com/pasindu8/telegrambot/bot/ops"
	"github.com/pasindu8/telegrambot/bot/relay"
	"github.com/pasindu8/telegrambot/bot/session"
	"github.com/pasindu8/telegrambot/core/bootstrap"
	corecmd "github.com/pasindu8/telegrambot/core/cmd"
	coretelegram "github.com/pasindu8/telegrambot/core/telegram"
	"github.com/pasindu8/telegrambot/core/telegram/commands"
	"github.com/pasindu8/telegrambot/core/telegram/helpers"

	"github.com/jmoiron/sqlx"
)

// App holds the assembled bot.
type App struct {
	cfg       *Config
	db        *sqlx.DB
	sessions  session.Manager
	exchange  *files.Exchange
	router    *flow.Router
	opsServer *ops.Server
}

// Bootstrap initializes infrastructure and wires the conversation router.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	ttl := cfg.SessionTTL()
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}

	var (
		sessions session.Manager
		exchange *files.Exchange
	)
	if res.DB != nil {
		sessions = session.NewPostgresManager(res.DB, ttl)
		exchange = files.NewExchange(files.NewPostgresStore(res.DB))
	} else {
		sessions = session.NewMemoryManager(ttl)
	}

	routerOpts := flow.Options{
		Sessions: sessions,
		Fetcher:  fetch.NewFetcher(),
	}
	// A nil concrete client stored in a non-nil interface would defeat the
	// router's availability checks, so absent capabilities stay unset.
	if exchange != nil {
		routerOpts.Exchange = exchange
	}
	if relayClient := relay.NewClient(cfg.Relay); relayClient != nil {
		routerOpts.Relay = relayClient
	}
	if aiClient := ai.NewClient(cfg.AI); aiClient != nil {
		routerOpts.AI = aiClient
	}

	return &App{
		cfg:       cfg,
		db:        res.DB,
		sessions:  sessions,
		exchange:  exchange,
		router:    flow.NewRouter(routerOpts),
		opsServer: ops.NewServer(cfg.Ops, ops.Deps{DB: res.DB, Exchange: exchange}),
	}, nil
}

// TelegramRunOptions builds the bot runtime: command registry, routes,
// middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	// Commands whose capability is absent still answer (with "unavailable")
	// but stay out of the published menu.
	hasExchange := a.exchange != nil
	hasAI := a.cfg.AI.Enabled()

	reg := coretelegram.NewRegistry()
	for _, entry := range []struct {
		name        string
		description string
		hidden      bool
	}{
		{name: "/start", description: "Show what the bot can do"},
		{name: "/sendmsg", description: "Relay a text message to a phone number"},
		{name: "/upload_file", description: "Store a file and get a PIN", hidden: !hasExchange},
		{name: "/get_file", description: "Redeem a PIN for a stored file", hidden: !hasExchange},
		{name: "/download_url", description: "Fetch a file from a URL"},
		{name: "/ask_ai", description: "Ask the AI assistant", hidden: !hasAI},
		{name: "/cancel", description: "Abort the current action"},
		{name: "/yt_download", description: "Unavailable", hidden: true},
	} {
		reg.RegisterCommand(entry.name, commands.Command{
			Handler:     a.commandHandler(entry.name),
			Description: entry.description,
			Hidden:      entry.hidden,
		})
	}

	routes := make([]coretelegram.Route, 0, len(reg.Commands())+5)
	for name, cmd := range reg.Commands() {
		routes = append(routes, coretelegram.Route{Endpoint: name, Handler: cmd.Handler})
	}
	routes = append(routes,
		coretelegram.Route{Endpoint: tele.OnText, Handler: a.onText},
		coretelegram.Route{Endpoint: tele.OnDocument, Handler: a.onMedia},
		coretelegram.Route{Endpoint: tele.OnPhoto, Handler: a.onMedia},
		coretelegram.Route{Endpoint: tele.OnVideo, Handler: a.onMedia},
		coretelegram.Route{Endpoint: tele.OnAudio, Handler: a.onMedia},
	)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(context.Context, coretelegram.Runtime) error {
			a.opsServer.Start()
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.opsServer.Stop(ctx)
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}

func (a *App) commandHandler(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.WithHandler(c, name)
		ev := a.buildEvent(c)
		ev.Kind = flow.EventCommand
		ev.Command = name
		return a.dispatch(ctx, c, ev)
	}
}

func (a *App) onText(c tele.Context) error {
	ctx := helpers.WithHandler(c, "text")
	ev := a.buildEvent(c)
	if cmd, ok := commandToken(ev.Text); ok {
		ev.Kind = flow.EventCommand
		ev.Command = cmd
	}
	return a.dispatch(ctx, c, ev)
}

func (a *App) onMedia(c tele.Context) error {
	ctx := helpers.WithHandler(c, "media")
	return a.dispatch(ctx, c, a.buildEvent(c))
}

func (a *App) dispatch(ctx context.Context, c tele.Context, ev flow.Event) error {
	rep := a.router.Handle(ctx, ev)
	return sendReply(c, rep)
}

// commandToken extracts the leading "/command" token, resolving the
// "/cmd@botname" mention form.
func commandToken(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	token, _, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(token, '@'); at > 0 {
		token = token[:at]
	}
	return token, true
}

// buildEvent maps a Telegram update onto the transport-independent event the
// router consumes.
func (a *App) buildEvent(c tele.Context) flow.Event {
	ev := flow.Event{Kind: flow.EventText}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if sender := c.Sender(); sender != nil {
		ev.SenderID = sender.ID
	}

	m := c.Message()
	if m == nil {
		return ev
	}
	ev.Text = m.Text

	switch {
	case m.Document != nil:
		ev.Attachment = &flow.Attachment{
			Kind:   files.KindDocument,
			FileID: m.Document.FileID,
			Name:   m.Document.FileName,
			MIME:   m.Document.MIME,
			Size:   m.Document.FileSize,
		}
	case m.Photo != nil:
		ev.Attachment = &flow.Attachment{
			Kind:   files.KindPhoto,
			FileID: m.Photo.FileID,
			Name:   "photo.jpg",
			MIME:   "image/jpeg",
			Size:   m.Photo.FileSize,
		}
	case m.Video != nil:
		ev.Attachment = &flow.Attachment{
			Kind:   files.KindVideo,
			FileID: m.Video.FileID,
			Name:   m.Video.FileName,
			MIME:   m.Video.MIME,
			Size:   m.Video.FileSize,
		}
	case m.Audio != nil:
		ev.Attachment = &flow.Attachment{
			Kind:   files.KindAudio,
			FileID: m.Audio.FileID,
			Name:   m.Audio.FileName,
			MIME:   m.Audio.MIME,
			Size:   m.Audio.FileSize,
		}
	}
	if ev.Attachment != nil {
		ev.Kind = flow.EventAttachment
		if m.Caption != "" {
			ev.Text = m.Caption
		}
	}
	return ev
}

// sendReply renders one router reply back through the transport.
func sendReply(c tele.Context, rep flow.Reply) error {
	switch {
	case rep.Record != nil:
		return helpers.SendMedia(c, recordSendable(rep.Record))
	case rep.Download != nil:
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(rep.Download.Data)),
			FileName: rep.Download.Name,
			MIME:     rep.Download.MimeType,
		}
		return helpers.SendMedia(c, doc)
	default:
		return helpers.SendText(c, rep.Text)
	}
}

// recordSendable rebuilds a sendable from a stored file reference so the
// platform resends the original bytes without re-uploading.
func recordSendable(rec *files.Record) tele.Sendable {
	file := tele.File{FileID: rec.FileID}
	switch rec.Kind {
	case files.KindPhoto:
		return &tele.Photo{File: file}
	case files.KindVideo:
		return &tele.Video{File: file, FileName: rec.DisplayName, MIME: rec.MimeType}
	case files.KindAudio:
		return &tele.Audio{File: file, FileName: rec.DisplayName, MIME: rec.MimeType}
	default:
		return &tele.Document{File: file, FileName: rec.DisplayName, MIME: rec.MimeType}
	}
}
