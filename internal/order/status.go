// Package order holds the order status lifecycle shared by every writer.
//
// Orders and their items move new -> cooking -> ready -> delivered. Only the
// immediate successor is a legal transition; any other move requires the
// administrative override.
package order

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of an order or of a single order item.
type Status string

const (
	StatusNew       Status = "new"
	StatusCooking   Status = "cooking"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNoop              = errors.New("order already has this status")
)

var sequence = []Status{StatusNew, StatusCooking, StatusReady, StatusDelivered}

// All returns the statuses in lifecycle order.
func All() []Status {
	out := make([]Status, len(sequence))
	copy(out, sequence)
	return out
}

// ParseStatus accepts the canonical names plus the aliases older clients send.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "pending":
		return StatusNew, nil
	case "cooking", "in_progress", "in-progress", "preparing":
		return StatusCooking, nil
	case "ready":
		return StatusReady, nil
	case "delivered", "served":
		return StatusDelivered, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

func (s Status) rank() int {
	for i, st := range sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Before reports whether s comes earlier in the lifecycle than other.
func (s Status) Before(other Status) bool {
	return s.rank() >= 0 && other.rank() >= 0 && s.rank() < other.rank()
}

// Terminal reports whether no forward transition exists from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// Next returns the forward successor of s.
func Next(s Status) (Status, bool) {
	r := s.rank()
	if r < 0 || r == len(sequence)-1 {
		return "", false
	}
	return sequence[r+1], true
}

// Transition checks a move from one status to another.
func Transition(from, to Status, override bool) error {
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if from == to {
		return ErrNoop
	}
	if override {
		return nil
	}
	if next, ok := Next(from); ok && next == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// Derive is the order status implied by its items: the slowest item's
// status, except that any started item puts a new order into cooking.
func Derive(items []Status) Status {
	if len(items) == 0 {
		return StatusNew
	}
	slowest := StatusDelivered
	started := false
	for _, s := range items {
		if s.Before(slowest) {
			slowest = s
		}
		if s != StatusNew {
			started = true
		}
	}
	if slowest == StatusNew && started {
		return StatusCooking
	}
	return slowest
}
