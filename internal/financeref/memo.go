package financeref

import (
	"fmt"
	"strings"
	"unicode"
)

// MemoTag links a ledger line to its project, invoice and optional WBS element.
type MemoTag struct {
	ProjectID string `json:"project_id"`
	InvoiceID string `json:"invoice_id"`
	WBS       string `json:"wbs,omitempty"`
}

func (m MemoTag) String() string {
	if m.WBS == "" {
		return m.ProjectID + ":" + m.InvoiceID
	}
	return m.ProjectID + ":" + m.InvoiceID + ":" + m.WBS
}

// GenerateMemoTag renders project:invoice[:wbs].
func GenerateMemoTag(projectID, invoiceID, wbs string) (string, error) {
	tag := MemoTag{ProjectID: projectID, InvoiceID: invoiceID, WBS: wbs}
	if err := tag.validate(); err != nil {
		return "", err
	}
	return tag.String(), nil
}

// ParseMemoTag is strict: surrounding whitespace is malformed, not trimmed, so that
// every generated tag parses back to exactly its inputs.
func ParseMemoTag(s string) (MemoTag, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return MemoTag{}, malformed("memo tag %q", s)
	}
	tag := MemoTag{ProjectID: parts[0], InvoiceID: parts[1]}
	if len(parts) == 3 {
		if parts[2] == "" {
			return MemoTag{}, malformed("memo tag %q has empty wbs", s)
		}
		tag.WBS = parts[2]
	}
	if err := tag.validate(); err != nil {
		return MemoTag{}, err
	}
	return tag, nil
}

func IsValidMemoTag(s string) bool {
	_, err := ParseMemoTag(s)
	return err == nil
}

func (m MemoTag) validate() error {
	fields := []struct{ name, value string }{
		{"project", m.ProjectID},
		{"invoice", m.InvoiceID},
	}
	for _, f := range fields {
		if f.value == "" {
			return malformed("memo tag %s is empty", f.name)
		}
	}
	for _, v := range []string{m.ProjectID, m.InvoiceID, m.WBS} {
		if strings.ContainsFunc(v, func(r rune) bool { return r == ':' || unicode.IsSpace(r) }) {
			return malformed("memo tag segment %q contains a separator or whitespace", v)
		}
	}
	return nil
}

// RefType is the closed set of finance reference types.
type RefType string

const (
	RefInvoice      RefType = "invoice"
	RefContract     RefType = "contract"
	RefDisbursement RefType = "disbursement"
	RefReceipt      RefType = "receipt"
)

var refPrefixes = map[RefType]string{
	RefInvoice:      prefixInvoice,
	RefContract:     prefixContract,
	RefDisbursement: prefixDisbursement,
	RefReceipt:      prefixReceipt,
}

// FinanceRef is a typed <TYPE>-<id> token such as INV-42.
type FinanceRef struct {
	Type RefType `json:"type"`
	ID   string  `json:"id"`
}

func (r FinanceRef) String() string {
	return refPrefixes[r.Type] + "-" + r.ID
}

func (r FinanceRef) IsZero() bool { return r.Type == "" && r.ID == "" }

func GenerateFinanceRef(refType RefType, id string) (string, error) {
	if _, ok := refPrefixes[refType]; !ok {
		return "", malformed("finance ref type %q", refType)
	}
	if err := validateSegment("finance ref id", id, true); err != nil {
		return "", err
	}
	return FinanceRef{Type: refType, ID: id}.String(), nil
}

func ParseFinanceRef(s string) (FinanceRef, error) {
	prefix, id, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return FinanceRef{}, malformed("finance ref %q", s)
	}
	for refType, p := range refPrefixes {
		if p != prefix {
			continue
		}
		if err := validateSegment("finance ref id", id, true); err != nil {
			return FinanceRef{}, err
		}
		return FinanceRef{Type: refType, ID: id}, nil
	}
	return FinanceRef{}, malformed("finance ref prefix %q", prefix)
}

func IsValidFinanceRef(s string) bool {
	_, err := ParseFinanceRef(s)
	return err == nil
}

// Describe decodes any supported identifier and reports its kind.
func Describe(s string) (string, any, error) {
	prefix, _, _ := strings.Cut(s, "-")
	switch prefix {
	case prefixPaymentRun:
		v, err := ParsePaymentRunID(s)
		return "payment_run", v, err
	case prefixVerificationGate:
		v, err := ParseVerificationGateID(s)
		return "verification_gate", v, err
	case prefixTokenBatch:
		v, err := ParseTokenBatchID(s)
		return "token_batch", v, err
	case prefixInvoice:
		if v, err := ParseInvoiceNumber(s); err == nil {
			return "invoice_number", v, nil
		}
	case prefixContract:
		if v, err := ParseContractNumber(s); err == nil {
			return "contract_number", v, nil
		}
	case prefixReceipt:
		if v, err := ParseReceiptID(s); err == nil {
			return "receipt", v, nil
		}
	}
	if strings.Contains(s, ":") {
		v, err := ParseMemoTag(s)
		return "memo_tag", v, err
	}
	v, err := ParseFinanceRef(s)
	if err != nil {
		return "", nil, fmt.Errorf("describe %q: %w", s, err)
	}
	return "finance_ref", v, nil
}
