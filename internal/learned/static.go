package learned

import (
	"context"
	"sync"
)

// Static is a fixed feed. Tests use it as a double; it also serves offline runs.
type Static struct {
	mu      sync.Mutex
	Payload *Payload
	Err     error
	Calls   int
}

// Fetch records the call and returns the configured payload.
func (s *Static) Fetch(ctx context.Context) (*Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Payload == nil {
		return &Payload{}, nil
	}
	return s.Payload, nil
}
