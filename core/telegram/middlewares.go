package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/pasindu8/telegrambot/core/config"
	"github.com/pasindu8/telegrambot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares assembles the standard chain: recover first, an
// optional rate limiter, then the request logger.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited func(tele.Context) error) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if limiter, ok := rateLimiter(cfg, onLimited); ok {
		mws = append(mws, limiter)
	}
	return append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
}

func rateLimiter(cfg *coreconfig.Config, onLimited func(tele.Context) error) (Middleware, bool) {
	if cfg == nil {
		return Middleware{}, false
	}
	interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
	if interval <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, t := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(t)] = struct{}{}
	}
	opts := middleware.RateLimitOptions{
		Interval:  interval,
		Exclude:   exclude,
		OnLimited: onLimited,
	}
	return Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(opts)}, true
}
