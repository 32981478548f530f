package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind names the entity a ledger entry was caused by.
type RefKind string

const (
	RefBooking    RefKind = "booking"
	RefPayout     RefKind = "payout"
	RefDispute    RefKind = "dispute"
	RefAdjustment RefKind = "adjustment"
)

// Ref is a typed pointer from a ledger entry to its cause.
type Ref struct {
	Kind RefKind `json:"kind"`
	ID   uint    `json:"id"`
}

func BookingRef(id uint) Ref { return Ref{Kind: RefBooking, ID: id} }
func PayoutRef(id uint) Ref  { return Ref{Kind: RefPayout, ID: id} }

func (r Ref) IsZero() bool { return r.Kind == "" }

func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseRef parses the "kind:id" form produced by Ref.String.
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, Invalid("ref %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Ref{}, Invalid("ref %q", s)
	}
	switch RefKind(kind) {
	case RefBooking, RefPayout, RefDispute, RefAdjustment:
		return Ref{Kind: RefKind(kind), ID: uint(n)}, nil
	}
	return Ref{}, Invalid("ref kind %q", kind)
}

// IdempotencyKey builds the gateway reference used for engine-originated entries:
// booking:<id>:<op>[:<cause>].
func IdempotencyKey(ref Ref, op string, cause ...string) string {
	parts := append([]string{ref.String(), op}, cause...)
	return strings.Join(parts, ":")
}
