package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pasindu8/telegrambot/core/logger"
	"log/slog"
)

// postgresManager keeps sessions in the sessions table so conversation state
// survives across independently scheduled executions of the same webhook. The
// embedded memory manager is a best-effort cache consulted when the database
// misbehaves; the table is the source of truth.
type postgresManager struct {
	db    *sqlx.DB
	ttl   time.Duration
	cache *memoryManager
}

// NewPostgresManager constructs a Manager persisted in Postgres with an
// in-process cache. A ttl of zero falls back to DefaultTTL.
func NewPostgresManager(db *sqlx.DB, ttl time.Duration) Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &postgresManager{
		db:    db,
		ttl:   ttl,
		cache: newMemoryManager(ttl),
	}
}

type sessionRow struct {
	ChatID  int64  `db:"chat_id"`
	State   string `db:"state"`
	Pending []byte `db:"pending"`
}

func (m *postgresManager) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}

func (m *postgresManager) degrade(op string, err error) {
	logger.Warn(context.Background(), "db", "session.degraded",
		slog.String("status", "fail"),
		slog.String("operation", op),
		slog.String("err", err.Error()),
	)
}

func (m *postgresManager) Get(chatID int64) Session {
	ctx, cancel := m.opCtx()
	defer cancel()

	var row sessionRow
	err := m.db.GetContext(ctx, &row,
		`SELECT chat_id, state, pending
		 FROM sessions
		 WHERE chat_id = $1 AND updated_at > now() - $2::interval`,
		chatID, intervalArg(m.ttl),
	)
	if errors.Is(err, sql.ErrNoRows) {
		m.cache.Clear(chatID)
		return NewSession()
	}
	if err != nil {
		m.degrade("get", err)
		return m.cache.Get(chatID)
	}

	sess := Session{State: State(row.State), Pending: make(map[string]string)}
	if len(row.Pending) > 0 {
		if err := json.Unmarshal(row.Pending, &sess.Pending); err != nil {
			m.degrade("get.decode", err)
			sess.Pending = make(map[string]string)
		}
	}
	m.mirror(chatID, sess)
	return sess
}

func (m *postgresManager) SetState(chatID int64, st State) {
	ctx, cancel := m.opCtx()
	defer cancel()

	_, err := m.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, state, pending, updated_at)
		 VALUES ($1, $2, '{}'::jsonb, now())
		 ON CONFLICT (chat_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		chatID, string(st),
	)
	if err != nil {
		m.degrade("set_state", err)
	}
	m.cache.SetState(chatID, st)
}

func (m *postgresManager) SetPending(chatID int64, key, value string) {
	ctx, cancel := m.opCtx()
	defer cancel()

	patch, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		m.degrade("set_pending.encode", err)
		m.cache.SetPending(chatID, key, value)
		return
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, state, pending, updated_at)
		 VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (chat_id) DO UPDATE
		 SET pending = sessions.pending || EXCLUDED.pending, updated_at = now()`,
		chatID, string(StateNone), patch,
	)
	if err != nil {
		m.degrade("set_pending", err)
	}
	m.cache.SetPending(chatID, key, value)
}

func (m *postgresManager) Pending(chatID int64, key string) (string, bool) {
	sess := m.Get(chatID)
	v, ok := sess.Pending[key]
	return v, ok
}

func (m *postgresManager) Clear(chatID int64) {
	ctx, cancel := m.opCtx()
	defer cancel()

	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE chat_id = $1`, chatID,
	); err != nil {
		m.degrade("clear", err)
	}
	m.cache.Clear(chatID)
}

func (m *postgresManager) InProgress(chatID int64) bool {
	return m.Get(chatID).State != StateNone
}

func (m *postgresManager) mirror(chatID int64, sess Session) {
	m.cache.SetState(chatID, sess.State)
	for k, v := range sess.Pending {
		m.cache.SetPending(chatID, k, v)
	}
}

func intervalArg(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
