package wait

import (
	"math/rand"
	"time"
)

// Jitter returns a random duration ranging from base to base+base*factor
func Jitter(base time.Duration, factor float64) time.Duration {
	//nolint:gosec
	return base + time.Duration(float64(base)*factor*rand.Float64())
}

// SleepWithJitter sleeps for a random duration ranging from base to base+base*factor
func SleepWithJitter(base time.Duration, factor float64) {
	time.Sleep(Jitter(base, factor))
}
