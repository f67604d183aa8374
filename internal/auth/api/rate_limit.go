package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// lockoutTier maps a failure count to a lockout duration. Tiers are
// ordered most severe first; the first threshold met decides.
type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks once max failures land inside the
// window. Retry is the time until the oldest in-window failure ages out.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 {
		return false, 0
	}

	var inWindow int
	var oldest time.Time
	cut := now.Add(-window)
	for _, f := range failures {
		if !f.After(cut) {
			continue
		}
		inWindow++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}

	if inWindow < max {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the first tier whose threshold the
// failure count reaches. The lockout runs from the most recent failure
// and clears once it elapses.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}

	var latest time.Time
	for _, f := range failures {
		if f.After(latest) {
			latest = f
		}
	}

	for _, tier := range tiers {
		if tier.Threshold <= 0 || len(failures) < tier.Threshold {
			continue
		}
		if retry := latest.Add(tier.Duration).Sub(now); retry > 0 {
			return true, retry
		}
		return false, 0
	}
	return false, 0
}

// loginLimiter tracks failed logins in memory, keyed by client IP and by
// the login name under attack. State is per process; a restart forgives.
type loginLimiter struct {
	ipMax     int
	ipWindow  time.Duration
	tiers     []lockoutTier
	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	byIP   map[string][]time.Time
	byName map[string][]time.Time
}

func newLoginLimiter(cfg Config) *loginLimiter {
	tiers := []lockoutTier{
		{Threshold: cfg.LockoutSevereThreshold, Duration: cfg.LockoutSevereDuration},
		{Threshold: cfg.LockoutLongThreshold, Duration: cfg.LockoutLongDuration},
		{Threshold: cfg.LockoutShortThreshold, Duration: cfg.LockoutShortDuration},
	}
	retention := cfg.LoginIPWindow
	for _, tier := range tiers {
		if tier.Duration > retention {
			retention = tier.Duration
		}
	}
	return &loginLimiter{
		ipMax:     cfg.LoginIPMax,
		ipWindow:  cfg.LoginIPWindow,
		tiers:     tiers,
		retention: retention,
		now:       time.Now,
		byIP:      map[string][]time.Time{},
		byName:    map[string][]time.Time{},
	}
}

// Check reports whether a login attempt must be refused right now.
func (l *loginLimiter) Check(ip, loginName string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)

	if ip != "" {
		if blocked, retry := evaluateWindowThrottle(now, l.byIP[ip], l.ipMax, l.ipWindow); blocked {
			return true, retry
		}
	}
	if loginName != "" {
		if blocked, retry := evaluateProgressiveLockout(now, l.byName[loginName], l.tiers); blocked {
			return true, retry
		}
	}
	return false, 0
}

func (l *loginLimiter) RecordFailure(ip, loginName string) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if ip != "" {
		l.byIP[ip] = append(l.byIP[ip], now)
	}
	if loginName != "" {
		l.byName[loginName] = append(l.byName[loginName], now)
	}
}

// Clear drops the failure history for a login name after a successful
// authentication. IP history stays: one good login must not reset a sweep.
func (l *loginLimiter) Clear(loginName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byName, loginName)
}

func (l *loginLimiter) prune(now time.Time) {
	cut := now.Add(-l.retention)
	pruneFailures(l.byIP, cut)
	pruneFailures(l.byName, cut)
}

func pruneFailures(m map[string][]time.Time, cut time.Time) {
	for k, times := range m {
		kept := times[:0]
		for _, ts := range times {
			if ts.After(cut) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(m, k)
			continue
		}
		m[k] = kept
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	sendError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
