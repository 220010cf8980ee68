package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/pasindu8/telegrambot/bot/files"
)

func TestCommandToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/start", "/start", true},
		{"/sendmsg 94712345678", "/sendmsg", true},
		{"/get_file@mybot", "/get_file", true},
		{"  /cancel  ", "/cancel", true},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := commandToken(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestRecordSendableByKind(t *testing.T) {
	rec := &files.Record{FileID: "ref", DisplayName: "a.bin", MimeType: "application/octet-stream"}

	rec.Kind = files.KindDocument
	doc, ok := recordSendable(rec).(*tele.Document)
	require.True(t, ok)
	require.Equal(t, "ref", doc.FileID)
	require.Equal(t, "a.bin", doc.FileName)

	rec.Kind = files.KindPhoto
	_, ok = recordSendable(rec).(*tele.Photo)
	require.True(t, ok)

	rec.Kind = files.KindVideo
	_, ok = recordSendable(rec).(*tele.Video)
	require.True(t, ok)

	rec.Kind = files.KindAudio
	_, ok = recordSendable(rec).(*tele.Audio)
	require.True(t, ok)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "test-token"
  run_mode: longpoll
relay:
  url: "https://relay.example.com/send"
session_ttl_minutes: 45
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "test-token", cfg.Core.Telegram.Token)
	require.True(t, cfg.Relay.Enabled())
	require.False(t, cfg.Database.Enabled())
	require.Equal(t, 45*time.Minute, cfg.SessionTTL())
}

func TestLoadConfigRejectsNegativeTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "test-token"
session_ttl_minutes: -5
`), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
