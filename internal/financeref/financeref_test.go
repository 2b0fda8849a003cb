package financeref

import (
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testDay = time.Date(2026, 10, 16, 23, 59, 59, 0, time.UTC)

func TestMemoTagRoundTrip(t *testing.T) {
	cases := []MemoTag{
		{ProjectID: "wetland-07", InvoiceID: "INV-RIV-000042"},
		{ProjectID: "p1", InvoiceID: "i1", WBS: "1.2.3"},
		{ProjectID: "prj_9", InvoiceID: "42", WBS: "WBS-07"},
	}
	for _, want := range cases {
		t.Run(want.String(), func(t *testing.T) {
			tag, err := GenerateMemoTag(want.ProjectID, want.InvoiceID, want.WBS)
			require.NoError(t, err)
			got, err := ParseMemoTag(tag)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.True(t, IsValidMemoTag(tag))
		})
	}
}

func TestMemoTagRejectsUnicodeWhitespace(t *testing.T) {
	cases := []struct {
		name              string
		project, inv, wbs string
	}{
		{"leading nbsp", "\u00a0p", "inv", ""},
		{"trailing carriage return", "p", "inv\r", ""},
		{"vertical tab in wbs", "p", "inv", "1.2\v"},
		{"form feed", "\fp", "inv", ""},
		{"next line", "p", "inv", "\u0085"},
		{"ideographic space", "p\u3000q", "inv", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateMemoTag(tc.project, tc.inv, tc.wbs)
			require.ErrorIs(t, err, domain.ErrMalformedReference)

			tag := MemoTag{ProjectID: tc.project, InvoiceID: tc.inv, WBS: tc.wbs}.String()
			_, err = ParseMemoTag(tag)
			require.ErrorIs(t, err, domain.ErrMalformedReference)
		})
	}

	_, err := ParseMemoTag(" p:inv ")
	require.ErrorIs(t, err, domain.ErrMalformedReference)
}

func TestParseMemoTagMalformed(t *testing.T) {
	for _, in := range []string{"", "onlyproject", "a:", ":b", "a:b:", "a:b:c:d", "a b:c"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMemoTag(in)
			require.ErrorIs(t, err, domain.ErrMalformedReference)
			assert.False(t, IsValidMemoTag(in))
		})
	}
}

func TestFinanceRefRoundTrip(t *testing.T) {
	cases := []struct {
		refType RefType
		id      string
		want    string
	}{
		{RefInvoice, "42", "INV-42"},
		{RefContract, "RIV-2026-0001", "CTR-RIV-2026-0001"},
		{RefDisbursement, "20261016ABC123", "DSB-20261016ABC123"},
		{RefReceipt, "7", "RCT-7"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			s, err := GenerateFinanceRef(tc.refType, tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, s)

			ref, err := ParseFinanceRef(s)
			require.NoError(t, err)
			assert.Equal(t, FinanceRef{Type: tc.refType, ID: tc.id}, ref)
			assert.True(t, IsValidFinanceRef(s))
		})
	}
}

func TestFinanceRefRejectsUnknownType(t *testing.T) {
	_, err := GenerateFinanceRef("payroll", "1")
	require.ErrorIs(t, err, domain.ErrMalformedReference)

	for _, in := range []string{"", "INV", "INV-", "PAY-1", "INV-a b"} {
		assert.False(t, IsValidFinanceRef(in), in)
		_, err := ParseFinanceRef(in)
		require.ErrorIs(t, err, domain.ErrMalformedReference)
	}
}

func TestInvoiceAndContractNumbers(t *testing.T) {
	inv, err := GenerateInvoiceNumber("RIV", 42)
	require.NoError(t, err)
	assert.Equal(t, "INV-RIV-000042", inv)
	parsed, err := ParseInvoiceNumber(inv)
	require.NoError(t, err)
	assert.Equal(t, InvoiceNumber{ProjectCode: "RIV", Sequence: 42}, parsed)

	ctr, err := GenerateContractNumber("RIV", 2026, 7)
	require.NoError(t, err)
	assert.Equal(t, "CTR-RIV-2026-0007", ctr)
	parsedCtr, err := ParseContractNumber(ctr)
	require.NoError(t, err)
	assert.Equal(t, ContractNumber{ProjectCode: "RIV", Year: 2026, Sequence: 7}, parsedCtr)

	_, err = GenerateInvoiceNumber("RIV", 0)
	require.ErrorIs(t, err, domain.ErrMalformedReference)
	_, err = ParseInvoiceNumber("INV-RIV-42")
	require.ErrorIs(t, err, domain.ErrMalformedReference)
}

func TestGeneratorDeterministicWithInjectedClock(t *testing.T) {
	g := NewGenerator(fixedClock{testDay}, 0)

	assert.Equal(t, "RUN-20261016-000000", g.PaymentRunID())
	assert.Equal(t, "RCT-20261016-000001", g.ReceiptID())

	vg, err := g.VerificationGateID("river-restore", "design")
	require.NoError(t, err)
	assert.Equal(t, "VG-river-restore-DESIGN-000002", vg)

	tkb, err := g.TokenBatchID("river-restore")
	require.NoError(t, err)
	assert.Equal(t, "TKB-river-restore-20261016-000003", tkb)
}

func TestGeneratorRoundTrip(t *testing.T) {
	g := NewGenerator(fixedClock{testDay}, 1234)
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	run, err := ParsePaymentRunID(g.PaymentRunID())
	require.NoError(t, err)
	assert.True(t, run.Date.Equal(day))

	rct, err := ParseReceiptID(g.ReceiptID())
	require.NoError(t, err)
	assert.True(t, rct.Date.Equal(day))

	vgID, err := g.VerificationGateID("wetland-07", "CONSTRUCTION")
	require.NoError(t, err)
	gate, err := ParseVerificationGateID(vgID)
	require.NoError(t, err)
	assert.Equal(t, "wetland-07", gate.ProjectID)
	assert.Equal(t, "CONSTRUCTION", gate.Phase)

	tkbID, err := g.TokenBatchID("wetland-07")
	require.NoError(t, err)
	batch, err := ParseTokenBatchID(tkbID)
	require.NoError(t, err)
	assert.Equal(t, "wetland-07", batch.ProjectID)
	assert.True(t, batch.Date.Equal(day))
}

func TestGeneratorSuffixWraps(t *testing.T) {
	g := NewGenerator(fixedClock{testDay}, suffixSpace-1)
	assert.Equal(t, "RUN-20261016-ZZZZZZ", g.PaymentRunID())
	assert.Equal(t, "RUN-20261016-000000", g.PaymentRunID())
}

// A frozen clock is the worst case for timestamp-derived ids: every call lands in
// the same instant, so uniqueness must come from the counter tail alone.
func TestGeneratorUniqueUnderConcurrencyWithFrozenClock(t *testing.T) {
	g := NewGenerator(fixedClock{testDay}, 987_654)

	const workers, perWorker = 16, 2000
	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.PaymentRunID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Len(t, seen, workers*perWorker)
}

func TestParseDatedMalformed(t *testing.T) {
	for _, in := range []string{"RUN-2026-ABCDEF", "RUN-20261016-abcdef", "RUN-20261016-ABC", "RCT-20261016-ABCDEF"} {
		_, err := ParsePaymentRunID(in)
		require.ErrorIs(t, err, domain.ErrMalformedReference, in)
	}
	_, err := ParseVerificationGateID("VG-p-design-ABCDEF")
	require.ErrorIs(t, err, domain.ErrMalformedReference)
	_, err = ParseTokenBatchID("TKB-20261016-ABCDEF")
	require.ErrorIs(t, err, domain.ErrMalformedReference)
}

func TestDescribe(t *testing.T) {
	kind, _, err := Describe("RUN-20261016-00000A")
	require.NoError(t, err)
	assert.Equal(t, "payment_run", kind)

	kind, v, err := Describe("INV-42")
	require.NoError(t, err)
	assert.Equal(t, "finance_ref", kind)
	assert.Equal(t, FinanceRef{Type: RefInvoice, ID: "42"}, v)

	kind, _, err = Describe("p:i:w")
	require.NoError(t, err)
	assert.Equal(t, "memo_tag", kind)

	_, _, err = Describe("???")
	require.ErrorIs(t, err, domain.ErrMalformedReference)
}
