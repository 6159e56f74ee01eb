package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "mailsched/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Timezone string // IANA TZ for reported run times, e.g. "Europe/Berlin"
	Overlap  OverlapPolicy

	// FiringTimeout bounds a single firing. 0 disables it.
	FiringTimeout time.Duration
}

type OverlapPolicy int

const (
	OverlapSkipIfRunning OverlapPolicy = iota
	OverlapAllow
)

func (p OverlapPolicy) String() string {
	if p == OverlapAllow {
		return "allow"
	}
	return "skip"
}

// ParseOverlap maps "skip"/"allow" (empty means skip) to a policy.
func ParseOverlap(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip", "serialize":
		return OverlapSkipIfRunning, nil
	case "allow", "overlap":
		return OverlapAllow, nil
	default:
		return 0, fmt.Errorf("invalid overlap policy %q (use skip or allow)", s)
	}
}

// Job is the work executed at each firing. ctx is cancelled on Shutdown or
// when the firing timeout elapses.
type Job = func(ctx context.Context)

type jobDef struct {
	name    string
	every   time.Duration
	entryID cron.EntryID
	added   time.Time
}

// JobInfo describes one live job.
type JobInfo struct {
	Name  string
	Every time.Duration
	Added time.Time
	Next  time.Time
	Prev  time.Time
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	c       *cron.Cron
	jobs    map[string]*jobDef
	started bool
	stopped bool

	runCtx    context.Context
	runCancel context.CancelFunc
}
