// Package args has values of commandline flags.
package args

import (
	"fmt"
	"strconv"
)

// Loop is a self-calibration loop given on the commandline.
//
// It is a loop number, or "current" for the loop recorded in the config.
// *Loop is a flag.Value. The zero value is unset.
type Loop struct {
	n       int
	current bool
	set     bool
}

func (l *Loop) String() string {
	if l == nil || !l.set {
		return ""
	}
	if l.current {
		return "current"
	}
	return strconv.Itoa(l.n)
}

func (l *Loop) Set(s string) error {
	v, err := ParseLoop(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// IsSet tells whether the loop is given.
func (l *Loop) IsSet() bool {
	return l != nil && l.set
}

// Value returns the loop number. It is 0 for the current loop.
func (l Loop) Value() int {
	return l.n
}

func (l Loop) IsCurrent() bool {
	return l.current
}

func NewLoop(n int) Loop {
	return Loop{n: n, set: true}
}

func CurrentLoop() Loop {
	return Loop{current: true, set: true}
}

// ParseLoop reads a non-negative integer or "current".
func ParseLoop(s string) (Loop, error) {
	if s == "current" {
		return CurrentLoop(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Loop{}, fmt.Errorf(`the value should be non-negative integer or "current": %v`, s)
	}
	return NewLoop(n), nil
}
