package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lazypower/strategist/internal/strategy"
	"github.com/rs/zerolog"
)

// maxLine bounds one JSONL record.
const maxLine = 1024 * 1024

// Summary counts the outcome of a batch submission.
type Summary struct {
	Read     int `json:"read"`
	Skipped  int `json:"skipped"`
	Accepted int `json:"accepted"`
}

// ReadRecords parses one Record per line. Blank lines are ignored; malformed
// or invalid lines are counted as skipped.
func ReadRecords(r io.Reader) ([]strategy.Record, int, error) {
	var (
		recs    []strategy.Record
		skipped int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec strategy.Record
		if err := json.Unmarshal(line, &rec); err != nil || check(rec) != nil {
			skipped++
			continue
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return recs, skipped, fmt.Errorf("scan records: %w", err)
	}
	return recs, skipped, nil
}

// SubmitAll posts every record in a JSONL stream, in order. Like Submit it
// never fails; problems are logged and reflected in the Summary.
func SubmitAll(ctx context.Context, c *Client, r io.Reader, log zerolog.Logger) Summary {
	recs, skipped, err := ReadRecords(r)
	if err != nil {
		log.Warn().Err(err).Msg("read records")
	}
	sum := Summary{Read: len(recs), Skipped: skipped}
	if len(recs) == 0 {
		return sum
	}
	if !c.Healthy(ctx) {
		log.Debug().Str("server", c.serverURL).Int("records", len(recs)).Msg("server unavailable, records dropped")
		return sum
	}
	for _, rec := range recs {
		if post(ctx, c, rec, log).Accepted {
			sum.Accepted++
		}
	}
	return sum
}
