package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff calcola un ritardo esponenziale con jitter opzionale
type Backoff struct {
	Initial        time.Duration
	Max            time.Duration
	Multiplier     float64
	JitterFraction float64 // 0.0-1.0
}

// Duration restituisce il ritardo per il tentativo (a partire da 1):
// Initial * Multiplier^(attempt-1), limitato a Max
func (b Backoff) Duration(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	backoff := float64(b.Initial) * math.Pow(multiplier, float64(attempt-1))
	if b.Max > 0 && backoff > float64(b.Max) {
		backoff = float64(b.Max)
	}

	if b.JitterFraction > 0 && b.JitterFraction <= 1 {
		// backoff ± backoff*jitter
		backoff += backoff * b.JitterFraction * (rand.Float64()*2 - 1)
	}

	return time.Duration(backoff)
}

// Sleep attende d oppure la cancellazione del context
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
