package harness

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/testutil"
)

func resultWithSample(remaining *big.Int, count uint64) *Result {
	r := NewResult()
	r.Steps = []Step{{Index: 0, Origin: "t:1", Result: "created", ID: testutil.SampleID}}
	rec := order.NewRecord(testutil.SampleID, testutil.SampleInput())
	rec.RemainingAmount = remaining
	rec.UpdatesCount = count
	r.Records = []order.Record{rec}
	return r
}

func ptr[T any](v T) *T { return &v }

func TestEvaluateExpectations_Pass(t *testing.T) {
	r := resultWithSample(big.NewInt(50), 2)

	errs := EvaluateExpectations(r, []Expectation{
		{Event: ptr(0), UpdatesCount: ptr(uint64(2)), RemainingAmount: ptr("0x32")},
		{ID: "0xCA3A35506B4F1E0BC0CF1A6DCF14AD60C6EF94B8C5DDFEB3E328C6AB60CEBBE0"},
		{ID: "0x" + "00" + testutil.SampleID[4:], Exists: ptr(false)},
	})
	assert.Empty(t, errs)
}

func TestEvaluateExpectations_Failures(t *testing.T) {
	tests := []struct {
		name string
		exp  Expectation
		want string
	}{
		{"updates count", Expectation{Event: ptr(0), UpdatesCount: ptr(uint64(1))}, "updates_count"},
		{"remaining", Expectation{Event: ptr(0), RemainingAmount: ptr("49")}, "Expected: 49"},
		{"unexpected record", Expectation{Event: ptr(0), Exists: ptr(false)}, "exists"},
		{"bad id", Expectation{ID: "0x1234"}, "invalid order id"},
		{"bad remaining", Expectation{Event: ptr(0), RemainingAmount: ptr("lots")}, "remaining_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateExpectations(resultWithSample(big.NewInt(50), 2), []Expectation{tt.exp})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestEvaluateExpectations_NilRemaining(t *testing.T) {
	errs := EvaluateExpectations(resultWithSample(nil, 0), []Expectation{
		{Event: ptr(0), RemainingAmount: ptr("0")},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: null")
}

func TestEvaluateExpectations_EventWithoutIdentity(t *testing.T) {
	r := NewResult()
	r.Steps = []Step{{Index: 0, Origin: "t:1", Result: "malformed"}}

	errs := EvaluateExpectations(r, []Expectation{{Event: ptr(0)}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "has no identity")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     "updates_count",
		Target:   testutil.SampleID,
		Expected: "2",
		Actual:   "1",
		Steps:    []Step{{Index: 0, Origin: "t:1", Result: "created", ID: testutil.SampleID}},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: updates_count")
	assert.Contains(t, msg, "Expected: 2")
	assert.Contains(t, msg, "Actual: 1")
	assert.Contains(t, msg, "[0] t:1 created")
}
