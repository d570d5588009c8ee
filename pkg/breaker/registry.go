package breaker

import (
	"sync"
	"time"
)

// Path identifies one guarded call path. Each path gets an isolated
// breaker so a failing summary generation cannot block reviews.
type Path string

const (
	PathReview  Path = "review"
	PathSkill   Path = "skill"
	PathSummary Path = "summary"
)

// Settings configures all breakers from a single record.
type Settings struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

var (
	mu       sync.RWMutex
	breakers = map[Path]*Breaker{
		PathReview:  New(0, 0, nil),
		PathSkill:   New(0, 0, nil),
		PathSummary: New(0, 0, nil),
	}
)

// Configure rebuilds all breakers from the given settings. Called once
// at startup, before any agent runs.
func Configure(s Settings) {
	mu.Lock()
	defer mu.Unlock()
	for _, p := range []Path{PathReview, PathSkill, PathSummary} {
		breakers[p] = New(s.FailureThreshold, s.ResetTimeout, nil)
	}
}

// Get returns the breaker for the given call path.
func Get(p Path) *Breaker {
	mu.RLock()
	defer mu.RUnlock()
	return breakers[p]
}

// ResetAll closes every breaker. Test affordance.
func ResetAll() {
	mu.RLock()
	defer mu.RUnlock()
	for _, b := range breakers {
		b.Reset()
	}
}
