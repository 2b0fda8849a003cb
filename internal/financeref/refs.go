package financeref

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
)

const (
	prefixInvoice          = "INV"
	prefixContract         = "CTR"
	prefixDisbursement     = "DSB"
	prefixReceipt          = "RCT"
	prefixPaymentRun       = "RUN"
	prefixVerificationGate = "VG"
	prefixTokenBatch       = "TKB"
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrMalformedReference)
}

// InvoiceNumber identifies an invoice within a project: INV-<PROJECT>-000042.
type InvoiceNumber struct {
	ProjectCode string
	Sequence    int64
}

func GenerateInvoiceNumber(projectCode string, seq int64) (string, error) {
	if err := validateSegment("project code", projectCode, false); err != nil {
		return "", err
	}
	if seq <= 0 || seq > 999_999 {
		return "", malformed("invoice sequence %d out of range", seq)
	}
	return fmt.Sprintf("%s-%s-%06d", prefixInvoice, projectCode, seq), nil
}

func ParseInvoiceNumber(s string) (InvoiceNumber, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != prefixInvoice || len(parts[2]) != 6 {
		return InvoiceNumber{}, malformed("invoice number %q", s)
	}
	if err := validateSegment("project code", parts[1], false); err != nil {
		return InvoiceNumber{}, err
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq <= 0 {
		return InvoiceNumber{}, malformed("invoice sequence %q", parts[2])
	}
	return InvoiceNumber{ProjectCode: parts[1], Sequence: seq}, nil
}

// ContractNumber identifies a contract: CTR-<PROJECT>-<YYYY>-0007.
type ContractNumber struct {
	ProjectCode string
	Year        int
	Sequence    int64
}

func GenerateContractNumber(projectCode string, year int, seq int64) (string, error) {
	if err := validateSegment("project code", projectCode, false); err != nil {
		return "", err
	}
	if year < 1000 || year > 9999 {
		return "", malformed("contract year %d", year)
	}
	if seq <= 0 || seq > 9999 {
		return "", malformed("contract sequence %d out of range", seq)
	}
	return fmt.Sprintf("%s-%s-%04d-%04d", prefixContract, projectCode, year, seq), nil
}

func ParseContractNumber(s string) (ContractNumber, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 || parts[0] != prefixContract || len(parts[2]) != 4 || len(parts[3]) != 4 {
		return ContractNumber{}, malformed("contract number %q", s)
	}
	if err := validateSegment("project code", parts[1], false); err != nil {
		return ContractNumber{}, err
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || year < 1000 {
		return ContractNumber{}, malformed("contract year %q", parts[2])
	}
	seq, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || seq <= 0 {
		return ContractNumber{}, malformed("contract sequence %q", parts[3])
	}
	return ContractNumber{ProjectCode: parts[1], Year: year, Sequence: seq}, nil
}

// DatedID is the decoded form of RUN-/RCT- identifiers.
type DatedID struct {
	Date   time.Time
	Suffix string
}

func ParsePaymentRunID(s string) (DatedID, error) {
	return parseDated(prefixPaymentRun, s)
}

func ParseReceiptID(s string) (DatedID, error) {
	return parseDated(prefixReceipt, s)
}

func parseDated(prefix, s string) (DatedID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return DatedID{}, malformed("%s id %q", prefix, s)
	}
	date, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return DatedID{}, malformed("%s date %q", prefix, parts[1])
	}
	if !isSuffix(parts[2]) {
		return DatedID{}, malformed("%s suffix %q", prefix, parts[2])
	}
	return DatedID{Date: date, Suffix: parts[2]}, nil
}

// VerificationGate is the decoded form of VG-<project>-<PHASE>-XXXXXX.
type VerificationGate struct {
	ProjectID string
	Phase     string
	Suffix    string
}

func ParseVerificationGateID(s string) (VerificationGate, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 4 || parts[0] != prefixVerificationGate {
		return VerificationGate{}, malformed("verification gate %q", s)
	}
	n := len(parts)
	gate := VerificationGate{
		ProjectID: strings.Join(parts[1:n-2], "-"),
		Phase:     parts[n-2],
		Suffix:    parts[n-1],
	}
	if err := validateSegment("project", gate.ProjectID, true); err != nil {
		return VerificationGate{}, err
	}
	if gate.Phase == "" || gate.Phase != strings.ToUpper(gate.Phase) {
		return VerificationGate{}, malformed("verification gate phase %q", gate.Phase)
	}
	if !isSuffix(gate.Suffix) {
		return VerificationGate{}, malformed("verification gate suffix %q", gate.Suffix)
	}
	return gate, nil
}

// TokenBatch is the decoded form of TKB-<project>-YYYYMMDD-XXXXXX.
type TokenBatch struct {
	ProjectID string
	Date      time.Time
	Suffix    string
}

func ParseTokenBatchID(s string) (TokenBatch, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 4 || parts[0] != prefixTokenBatch {
		return TokenBatch{}, malformed("token batch %q", s)
	}
	n := len(parts)
	projectID := strings.Join(parts[1:n-2], "-")
	if err := validateSegment("project", projectID, true); err != nil {
		return TokenBatch{}, err
	}
	date, err := time.Parse(dateLayout, parts[n-2])
	if err != nil {
		return TokenBatch{}, malformed("token batch date %q", parts[n-2])
	}
	if !isSuffix(parts[n-1]) {
		return TokenBatch{}, malformed("token batch suffix %q", parts[n-1])
	}
	return TokenBatch{ProjectID: projectID, Date: date, Suffix: parts[n-1]}, nil
}
