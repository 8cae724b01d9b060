package treasury

import "sync"

const secondsPerDay = 86400

// SpendingLimiter enforces daily, monthly, and per-category caps ahead of
// any treasury debit (spec.md §4.6 "Spending controls include daily and
// monthly limits and category caps, checked before any debit"). Windows
// are keyed off unix-second day/30-day-month buckets derived from the
// timestamp passed to Reserve, matching the block header's UTC daily
// cadence rather than wall-clock calendar months.
type SpendingLimiter struct {
	mu              sync.Mutex
	dailyLimit      uint64
	monthlyLimit    uint64
	categoryLimits  map[string]uint64
	currentDay      int64
	daySpent        uint64
	currentMonth    int64
	monthSpent      uint64
	categorySpent   map[string]uint64
}

// NewSpendingLimiter constructs a limiter. A zero limit means unbounded
// for that dimension.
func NewSpendingLimiter(dailyLimit, monthlyLimit uint64, categoryLimits map[string]uint64) *SpendingLimiter {
	cl := make(map[string]uint64, len(categoryLimits))
	for k, v := range categoryLimits {
		cl[k] = v
	}
	return &SpendingLimiter{
		dailyLimit:     dailyLimit,
		monthlyLimit:   monthlyLimit,
		categoryLimits: cl,
		categorySpent:  make(map[string]uint64),
	}
}

// Reserve checks amount against all configured caps for category at
// nowUnix and, if every cap is satisfied, records the spend. Callers that
// subsequently fail to complete the debit must call Release to undo the
// reservation.
func (l *SpendingLimiter) Reserve(amount uint64, category string, nowUnix int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := nowUnix / secondsPerDay
	month := nowUnix / (30 * secondsPerDay)

	if day != l.currentDay {
		l.currentDay = day
		l.daySpent = 0
	}
	if month != l.currentMonth {
		l.currentMonth = month
		l.monthSpent = 0
		l.categorySpent = make(map[string]uint64)
	}

	if l.dailyLimit > 0 && l.daySpent+amount > l.dailyLimit {
		return newErr(ErrLimitExceeded, "daily limit exceeded")
	}
	if l.monthlyLimit > 0 && l.monthSpent+amount > l.monthlyLimit {
		return newErr(ErrLimitExceeded, "monthly limit exceeded")
	}
	if limit, ok := l.categoryLimits[category]; ok && limit > 0 {
		if l.categorySpent[category]+amount > limit {
			return newErr(ErrCategoryExceeded, category)
		}
	}

	l.daySpent += amount
	l.monthSpent += amount
	l.categorySpent[category] += amount
	return nil
}

// Release undoes a prior successful Reserve (used when the debit itself
// subsequently fails, e.g. insufficient operating balance).
func (l *SpendingLimiter) Release(amount uint64, category string, nowUnix int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := nowUnix / secondsPerDay
	month := nowUnix / (30 * secondsPerDay)
	if day == l.currentDay {
		l.daySpent -= min64(amount, l.daySpent)
	}
	if month == l.currentMonth {
		l.monthSpent -= min64(amount, l.monthSpent)
		spent := l.categorySpent[category]
		l.categorySpent[category] = spent - min64(amount, spent)
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
