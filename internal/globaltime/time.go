package globaltime

import (
	"sync"
	"time"
)

// DateLayout is the ledger's wire format for merge dates.
const DateLayout = "2006-01-02"

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Today returns the current UTC date in the ledger's date format.
func Today() string {
	return UTC().Format(DateLayout)
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
