// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collection

import (
	"context"
	"time"
)

// RunAutosave saves the collection every interval until ctx is
// cancelled. A failed save is logged and retried at the next tick. A
// non-positive interval returns immediately.
func (m *Manager) RunAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Save(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Warn("autosave failed", "error", err)
			}
		}
	}
}
