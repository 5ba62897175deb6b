// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mail

import (
	"strings"
	"sync"
	"time"
)

const (
	// defaultRateLimitPeriod is the default rate limit period.
	defaultRateLimitPeriod = 24 * time.Hour
)

// The limit email is sent to users as a warning when they hit the email rate
// limit.
const limitEmailSubject = "Límite de correos alcanzado"
const limitEmailBody = `<p>Has alcanzado el límite de correos de las últimas
24 horas. Esta medida evita que usuarios malintencionados abusen del servidor
de correo de AgroMarket. No recibirás más notificaciones durante 24 horas.</p>
<p>Lamentamos las molestias.</p>`

// history is the email history of a single recipient.
type history struct {
	timestamps       []int64
	limitWarningSent bool
}

// limiter keeps the in memory email history of every recipient.
type limiter struct {
	sync.Mutex
	limit     int
	period    time.Duration
	histories map[string]*history
}

func newLimiter(limit int, period time.Duration) *limiter {
	return &limiter{
		limit:     limit,
		period:    period,
		histories: make(map[string]*history),
	}
}

// filter divides the recipients into the ones that may receive the email
// and the ones that hit the rate limit with this email and must be sent the
// warning instead. Recipients that were already warned are dropped.
func (l *limiter) filter(recipients []string) (valid, warning []string) {
	l.Lock()
	defer l.Unlock()

	now := time.Now().Unix()
	for _, email := range recipients {
		key := strings.ToLower(email)
		h, ok := l.histories[key]
		if !ok {
			l.histories[key] = &history{timestamps: []int64{now}}
			valid = append(valid, email)
			continue
		}

		h.timestamps = filterTimestamps(h.timestamps, l.period)
		if len(h.timestamps) >= l.limit {
			if !h.limitWarningSent {
				warning = append(warning, email)
				h.limitWarningSent = true
			}
			continue
		}

		valid = append(valid, email)
		h.timestamps = append(h.timestamps, now)
		h.limitWarningSent = false
	}

	return valid, warning
}

// filterTimestamps filters out timestamps from the passed in slice that comes
// before the specified delta time duration.
func filterTimestamps(in []int64, delta time.Duration) []int64 {
	before := time.Now().Add(-delta)
	out := make([]int64, 0, len(in))

	for _, ts := range in {
		timestamp := time.Unix(ts, 0)
		if timestamp.Before(before) {
			continue
		}
		out = append(out, ts)
	}

	return out
}
