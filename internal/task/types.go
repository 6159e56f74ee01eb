package task

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Unit is the closed set of interval units a task may use.
type Unit string

const (
	Seconds Unit = "seconds"
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
)

var unitDurations = map[Unit]time.Duration{
	Seconds: time.Second,
	Minutes: time.Minute,
	Hours:   time.Hour,
	Days:    24 * time.Hour,
}

// Units lists the valid units in ascending size.
func Units() []Unit { return []Unit{Seconds, Minutes, Hours, Days} }

// ParseUnit normalizes s and checks it against the closed unit set.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := unitDurations[u]; !ok {
		return "", fmt.Errorf("%w: %q (use seconds, minutes, hours or days)", ErrInvalidUnit, s)
	}
	return u, nil
}

func (u Unit) Valid() bool {
	_, ok := unitDurations[u]
	return ok
}

// Every converts interval x unit to a duration.
func Every(interval int, unit Unit) (time.Duration, error) {
	base, ok := unitDurations[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidInterval, interval)
	}
	return time.Duration(interval) * base, nil
}

// Definition is the persisted unit of work.
//
// JSON keys match the task file written by earlier versions of the tool.
type Definition struct {
	Interval    int      `json:"interval"`
	Unit        Unit     `json:"unit"`
	EmailList   string   `json:"email_list"`
	MessageFile string   `json:"message_file"`
	Subject     string   `json:"subject"`
	Attachments []string `json:"attachments"`
}

// Every returns the firing period of d.
func (d Definition) Every() (time.Duration, error) { return Every(d.Interval, d.Unit) }

// Validate checks the fields required to schedule d.
func (d Definition) Validate() error {
	if _, err := d.Every(); err != nil {
		return err
	}
	if strings.TrimSpace(d.EmailList) == "" {
		return fmt.Errorf("%w: email list path required", ErrInvalidDefinition)
	}
	if strings.TrimSpace(d.MessageFile) == "" {
		return fmt.Errorf("%w: message file path required", ErrInvalidDefinition)
	}
	if strings.TrimSpace(d.Subject) == "" {
		return fmt.Errorf("%w: subject required", ErrInvalidDefinition)
	}
	return nil
}

// SameContent reports whether d and o describe the same work.
// Attachments compare in order; nil and empty are equal.
func (d Definition) SameContent(o Definition) bool {
	return d.Interval == o.Interval &&
		d.Unit == o.Unit &&
		d.EmailList == o.EmailList &&
		d.MessageFile == o.MessageFile &&
		d.Subject == o.Subject &&
		slices.Equal(d.Attachments, o.Attachments)
}

// Normalized returns a copy with a non-nil attachments slice so the task file
// always stores [] rather than null.
func (d Definition) Normalized() Definition {
	cp := d
	cp.Attachments = append([]string{}, d.Attachments...)
	return cp
}

// Set is the full persisted task table keyed by task name.
type Set map[string]Definition

const namePrefix = "task_"

// NextName returns "task_<len+1>", bumping the number until it is unused.
func (s Set) NextName() string {
	n := len(s) + 1
	for {
		name := namePrefix + strconv.Itoa(n)
		if _, taken := s[name]; !taken {
			return name
		}
		n++
	}
}

// FindSame returns the name of a definition with the same content as d.
func (s Set) FindSame(d Definition) (string, bool) {
	for _, name := range s.Names() {
		if s[name].SameContent(d) {
			return name, true
		}
	}
	return "", false
}

// Names returns task names in natural order (task_2 before task_10).
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	return names
}

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v.Normalized()
	}
	return out
}

func naturalLess(a, b string) bool {
	ai, aok := nameSeq(a)
	bi, bok := nameSeq(b)
	switch {
	case aok && bok:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}

func nameSeq(name string) (int, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(namePrefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}
