// Package report forwards a completed optimization run from an executor to
// a running strategist server. Reporting never fails the executor.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lazypower/strategist/internal/strategy"
	"github.com/rs/zerolog"
)

// Result is what the server decided about a submitted record.
type Result struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
}

// Submit reads one Record from r and posts it to the server. Every failure
// is logged and reported as not accepted.
func Submit(ctx context.Context, c *Client, r io.Reader, log zerolog.Logger) Result {
	var rec strategy.Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		log.Warn().Err(err).Msg("decode record")
		return Result{}
	}
	if err := check(rec); err != nil {
		log.Warn().Err(err).Msg("invalid record")
		return Result{}
	}

	// Degrade silently when no server is running.
	if !c.Healthy(ctx) {
		log.Debug().Str("server", c.serverURL).Msg("server unavailable, record dropped")
		return Result{}
	}
	return post(ctx, c, rec, log)
}

func post(ctx context.Context, c *Client, rec strategy.Record, log zerolog.Logger) Result {
	body, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Msg("encode record")
		return Result{}
	}
	data, err := c.Post(ctx, "/api/records", body)
	if err != nil {
		log.Warn().Err(err).Str("app", rec.AppID).Msg("submit record")
		return Result{}
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		log.Warn().Err(err).Msg("decode server response")
		return Result{}
	}
	log.Debug().Str("app", rec.AppID).Bool("accepted", res.Accepted).Msg("record submitted")
	return res
}

func check(rec strategy.Record) error {
	if rec.AppID == "" {
		return fmt.Errorf("appId required")
	}
	if !rec.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", rec.Strategy)
	}
	return nil
}
