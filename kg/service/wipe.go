package service

import (
	"context"
	"fmt"
	"time"
)

// Wipe irreversibly destroys the dataset after the request's grace delay.
// The delay exists so an accidental caller can still cancel the context
// before the wipe becomes irreversible; once the delay elapses there is no
// way back. Wipe never partially applies: an error means the dataset is
// intact.
func (s *Service) Wipe(ctx context.Context, req WipeRequest) (WipeResult, error) {
	if req.WaitFor > 0 {
		timer := time.NewTimer(req.WaitFor)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return WipeResult{}, fmt.Errorf("service: wipe cancelled during grace period: %w", ctx.Err())
		case <-timer.C:
		}
	}

	before, at, err := s.store.Wipe(ctx)
	if err != nil {
		return WipeResult{}, fmt.Errorf("service: wipe: %w", err)
	}
	return WipeResult{Index: before, AtIndex: at}, nil
}
