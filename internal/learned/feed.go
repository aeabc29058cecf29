// Package learned fetches centrally-learned strategy improvements.
package learned

import (
	"context"
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/strategy"
)

// Feed is the interface for learned-strategy sources.
type Feed interface {
	Fetch(ctx context.Context) (*Payload, error)
}

// Payload is the body a feed returns.
type Payload struct {
	Strategies map[string]strategy.Learned `json:"strategies"`
}

// NewFeed creates a feed from config. An empty URL disables the remote feed.
func NewFeed(cfg config.LearnedConfig) Feed {
	if cfg.URL == "" {
		return Nop{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewHTTPFeed(cfg.URL, timeout)
}

// Nop is a feed with nothing to offer.
type Nop struct{}

// Fetch returns an empty payload.
func (Nop) Fetch(ctx context.Context) (*Payload, error) {
	return &Payload{}, nil
}
