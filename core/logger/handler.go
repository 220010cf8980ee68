package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders slog records as single-line KV or JSON with a
// stable key prefix so lines stay grep-friendly.
type structuredHandler struct {
	cfg    handlerConfig
	preset []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle renders r into a single line and hands it to the async writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	fs := newFieldSet()
	ts := r.Time.UTC()
	fs.put("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	fs.put("level", normalizeLevel(r.Level.String()))
	asJSON := h.cfg.format == formatJSON
	if asJSON {
		fs.put("ts_unix_nano", ts.UnixNano())
	}

	for _, a := range h.preset {
		h.absorb(fs, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.absorb(fs, a)
		return true
	})

	fs.fillFromContext(ctx)
	fs.compactRID(asJSON)

	if ev := fs.str("event"); ev == "" {
		if r.Message != "" {
			fs.put("event", r.Message)
		} else {
			fs.put("event", "unknown")
		}
	}
	if fs.str("component") == "" {
		fs.put("component", "app")
	}

	fs.normalizeEnums()
	fs.dropEmpty()

	var line []byte
	var err error
	if asJSON {
		line, err = fs.renderJSON(h.cfg.keyOrder)
	} else {
		line = fs.renderKV(h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	if n := len(line); n == 0 || line[n-1] != '\n' {
		line = append(line, '\n')
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append(append([]slog.Attr(nil), h.preset...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// absorb flattens a, including nested groups, into fs.
func (h *structuredHandler) absorb(fs *fieldSet, attr slog.Attr) {
	prefix := strings.Join(h.groups, ".")
	var walk func(prefix string, a slog.Attr)
	walk = func(prefix string, a slog.Attr) {
		key := a.Key
		switch {
		case key == "":
			key = prefix
		case prefix != "":
			key = prefix + "." + key
		}
		if a.Value.Kind() == slog.KindGroup {
			for _, child := range a.Value.Group() {
				walk(key, child)
			}
			return
		}
		if key == "" {
			return
		}
		k, v, ok := coerceValue(key, a.Value)
		if ok {
			fs.put(k, v)
		}
	}
	walk(prefix, attr)
}

// coerceValue maps a slog value onto the wire types the formatters accept.
// Durations become integral milliseconds under a *_ms key.
func coerceValue(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		u := val.Uint64()
		if u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, u, true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return millisKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := val.Any().(type) {
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return millisKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		case nil:
			return key, nil, false
		default:
			return key, fmt.Sprint(x), true
		}
	default:
		return key, val.Any(), true
	}
}

func millisKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// fieldSet is the mutable set of fields for one log line.
type fieldSet struct {
	m map[string]any
}

func newFieldSet() *fieldSet {
	return &fieldSet{m: make(map[string]any, 16)}
}

func (fs *fieldSet) put(key string, val any) { fs.m[key] = val }

func (fs *fieldSet) putIfAbsent(key string, val any) {
	if _, ok := fs.m[key]; !ok {
		fs.m[key] = val
	}
}

// str returns the field as a string, empty when missing.
func (fs *fieldSet) str(key string) string {
	v, ok := fs.m[key]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// fillFromContext copies correlation metadata from ctx without
// overwriting fields the caller set explicitly.
func (fs *fieldSet) fillFromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		fs.putIfAbsent("rid", rid)
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		fs.putIfAbsent("user_id", uid)
	}
	if updateID := UpdateIDFrom(ctx); updateID != 0 {
		fs.putIfAbsent("update_id", updateID)
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		fs.putIfAbsent("chat_id", cid)
	}
	if name := HandlerFrom(ctx); name != "" {
		fs.putIfAbsent("handler", name)
	}
}

// compactRID shortens a numeric rid in place. JSON output keeps the
// original under rid_full.
func (fs *fieldSet) compactRID(keepFull bool) {
	rid := fs.str("rid")
	if rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if keepFull {
		fs.putIfAbsent("rid_full", rid)
	}
	fs.put("rid", compact)
}

func (fs *fieldSet) normalizeEnums() {
	if level := fs.str("level"); level != "" {
		fs.put("level", normalizeLevel(level))
	}
	if s := fs.str("status"); s != "" {
		if normalized, ok := normalizeStatus(s); ok {
			fs.put("status", normalized)
		}
	}
	if o := fs.str("outcome"); o != "" {
		if normalized, ok := normalizeOutcome(o); ok {
			fs.put("outcome", normalized)
		} else {
			delete(fs.m, "outcome")
		}
	}
}

func (fs *fieldSet) dropEmpty() {
	for k, v := range fs.m {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(fs.m, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(fs.m, k)
			}
		case nil:
			delete(fs.m, k)
		}
	}
}

// orderedKeys yields the keys of order that are present, then the rest
// sorted alphabetically.
func (fs *fieldSet) orderedKeys(order []string) []string {
	keys := make([]string, 0, len(fs.m))
	seen := make(map[string]struct{}, len(fs.m))
	for _, key := range order {
		if _, ok := fs.m[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	head := len(keys)
	for key := range fs.m {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[head:])
	return keys
}

func (fs *fieldSet) renderKV(order []string) []byte {
	var b strings.Builder
	for i, key := range fs.orderedKeys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(fs.m[key]))
	}
	return []byte(b.String())
}

func (fs *fieldSet) renderJSON(order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range fs.orderedKeys(order) {
		data, err := json.Marshal(fs.m[key])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func kvValue(val any) string {
	switch v := val.(type) {
	case string:
		if v != "" && strings.IndexFunc(v, kvNeedsQuote) >= 0 {
			return strconv.Quote(v)
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func kvNeedsQuote(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}
