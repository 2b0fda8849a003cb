// Package financeref generates and parses the structured identifiers that tag
// invoices, contracts, disbursements, payment runs, receipts, verification gates,
// token batches and memo lines.
//
// Every parser returns an error wrapping domain.ErrMalformedReference for input it
// cannot decode; none of them panic.
package financeref

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	suffixLen   = 6
	suffixSpace = 36 * 36 * 36 * 36 * 36 * 36
	dateLayout  = "20060102"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

// Generator mints identifiers whose tails come from a per-process counter.
//
// Suffixes are six base-36 characters taken from an atomic counter, so within one
// process no two generated identifiers share a suffix until 36^6 (~2.18e9) ids have
// been issued, regardless of how coarse the clock is. The starting offset is random
// so independent processes are unlikely to collide.
type Generator struct {
	clock Clock
	next  atomic.Uint64
}

// NewGenerator builds a generator with an explicit clock and counter seed.
func NewGenerator(clock Clock, seed uint64) *Generator {
	if clock == nil {
		clock = SystemClock()
	}
	g := &Generator{clock: clock}
	g.next.Store(seed % suffixSpace)
	return g
}

// NewDefaultGenerator uses the wall clock and a random seed.
func NewDefaultGenerator() *Generator {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return NewGenerator(SystemClock(), binary.BigEndian.Uint64(buf[:]))
}

func (g *Generator) suffix() string {
	n := (g.next.Add(1) - 1) % suffixSpace
	s := strings.ToUpper(strconv.FormatUint(n, 36))
	return strings.Repeat("0", suffixLen-len(s)) + s
}

func (g *Generator) today() string {
	return g.clock.Now().UTC().Format(dateLayout)
}

// PaymentRunID returns RUN-YYYYMMDD-XXXXXX.
func (g *Generator) PaymentRunID() string {
	return fmt.Sprintf("%s-%s-%s", prefixPaymentRun, g.today(), g.suffix())
}

// ReceiptID returns RCT-YYYYMMDD-XXXXXX.
func (g *Generator) ReceiptID() string {
	return fmt.Sprintf("%s-%s-%s", prefixReceipt, g.today(), g.suffix())
}

// VerificationGateID returns VG-<project>-<PHASE>-XXXXXX.
func (g *Generator) VerificationGateID(projectID, phase string) (string, error) {
	if err := validateSegment("project", projectID, true); err != nil {
		return "", err
	}
	phase = strings.ToUpper(phase)
	if err := validateSegment("phase", phase, false); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s-%s", prefixVerificationGate, projectID, phase, g.suffix()), nil
}

// TokenBatchID returns TKB-<project>-YYYYMMDD-XXXXXX.
func (g *Generator) TokenBatchID(projectID string) (string, error) {
	if err := validateSegment("project", projectID, true); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s-%s", prefixTokenBatch, projectID, g.today(), g.suffix()), nil
}

// DisbursementRef returns a finance ref of type disbursement with a dated, counter-backed id.
func (g *Generator) DisbursementRef() FinanceRef {
	return FinanceRef{Type: RefDisbursement, ID: g.today() + g.suffix()}
}

func isSuffix(s string) bool {
	if len(s) != suffixLen {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// validateSegment checks an identifier segment; hyphens are allowed only when dashed is true.
func validateSegment(field, v string, dashed bool) error {
	if v == "" {
		return malformed("%s is empty", field)
	}
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		case r == '-' && dashed:
		default:
			return malformed("%s %q contains %q", field, v, r)
		}
	}
	if strings.HasPrefix(v, "-") || strings.HasSuffix(v, "-") {
		return malformed("%s %q has a leading or trailing hyphen", field, v)
	}
	return nil
}
