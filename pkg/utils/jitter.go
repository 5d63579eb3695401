// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"math/rand/v2"
	"time"
)

// Jitter returns base shifted by a random amount within ±fraction of base.
//
// Example: Jitter(time.Minute, 0.1) returns 54s-66s
func Jitter(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	if fraction > 1 {
		fraction = 1
	}
	jitterRange := float64(base) * fraction
	jitter := (rand.Float64()*2 - 1) * jitterRange
	return base + time.Duration(jitter)
}

// RunJittered calls fn every base ± fraction until ctx is done. Each tick
// draws its own jitter so that replicas started together drift apart.
func RunJittered(ctx context.Context, base time.Duration, fraction float64, fn func()) {
	timer := time.NewTimer(Jitter(base, fraction))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fn()
			timer.Reset(Jitter(base, fraction))
		}
	}
}
