package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func gulaScenario(flow ...FlowStep) *Scenario {
	return &Scenario{
		Name:        "gula",
		Description: "one product",
		Products: []ProductFixture{
			{Key: "gula", Name: "Gula", Price: 10000, CostPrice: 8000, Stock: 5},
		},
		Flow:       flow,
		Assertions: []Assertion{{Type: AssertUnsyncedCount, Count: 1}},
	}
}

func TestRun_CashSale(t *testing.T) {
	scenario := gulaScenario(
		FlowStep{Action: ActionAdd, Product: "gula", Qty: 2},
		FlowStep{Action: ActionCheckout, Method: "cash", Cash: 25000, As: "s1",
			Expect: &ExpectClause{Status: "paid", Total: ptr[int64](20000), Change: ptr[int64](5000)}},
	)
	scenario.Assertions = append(scenario.Assertions,
		Assertion{Type: AssertStock, Product: "gula", Stock: ptr(3.0)},
		Assertion{Type: AssertStatus, Sale: "s1", Status: "paid"},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)

	co := result.Trace[1]
	assert.Equal(t, 2, co.Seq)
	assert.Equal(t, ActionCheckout, co.Action)
	assert.Equal(t, OutcomeOK, co.Outcome)
	assert.Equal(t, "TRX-TEST-0001", co.Result["number"])
	assert.EqualValues(t, 5000, co.Result["change"])
}

func TestRun_AddDefaultsToOne(t *testing.T) {
	result, err := Run(gulaScenario(
		FlowStep{Action: ActionAdd, Product: "gula", Expect: &ExpectClause{CartTotal: ptr[int64](10000)}},
		FlowStep{Action: ActionCheckout, Method: "cash", Cash: 10000},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 1.0, result.Trace[0].Args["qty"])
}

func TestRun_UnexpectedErrorFailsStep(t *testing.T) {
	result, err := Run(gulaScenario(
		FlowStep{Action: ActionAdd, Product: "gula", Qty: 6},
		FlowStep{Action: ActionCheckout, Method: "cash", Cash: 10000},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "STOCK_INSUFFICIENT", result.Trace[0].Outcome)
	assert.Equal(t, []string{"Gula"}, result.Trace[0].Result["short"])
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "flow[0] add: expected outcome ok, got STOCK_INSUFFICIENT")
}

func TestRun_ExpectedErrorPasses(t *testing.T) {
	scenario := gulaScenario(
		FlowStep{Action: ActionCheckout, Method: "cash", Expect: &ExpectClause{Error: "EMPTY_CART"}},
	)
	scenario.Assertions = []Assertion{{Type: AssertUnsyncedCount, Count: 0}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Nil(t, result.Trace[0].Result)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	result, err := Run(gulaScenario(
		FlowStep{Action: ActionAdd, Product: "gula"},
		FlowStep{Action: ActionCheckout, Method: "bon", As: "s1",
			Expect: &ExpectClause{Status: "paid", Total: ptr[int64](1)}},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "expected status paid, got pending")
	assert.Contains(t, joined, "expected total 1, got 10000")
}

func TestRun_SurchargeOverride(t *testing.T) {
	scenario := gulaScenario(
		FlowStep{Action: ActionWeigh, Product: "gula", Kg: 0.25,
			Expect: &ExpectClause{CartTotal: ptr[int64](3000)}},
		FlowStep{Action: ActionCheckout, Method: "cash", Cash: 3000},
	)
	scenario.Surcharge = ptr[int64](2000)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_NumberPrefix(t *testing.T) {
	scenario := gulaScenario(
		FlowStep{Action: ActionAdd, Product: "gula"},
		FlowStep{Action: ActionCheckout, Method: "cash", Cash: 10000},
	)
	scenario.NumberPrefix = "TILL1-"

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, "TILL1-0001", result.Trace[1].Result["number"])
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "bon_lifecycle.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FreshDatabasePerRun(t *testing.T) {
	scenario := gulaScenario(
		FlowStep{Action: ActionAdd, Product: "gula", Qty: 5},
		FlowStep{Action: ActionCheckout, Method: "cash", Cash: 50000},
	)
	scenario.Assertions = append(scenario.Assertions,
		Assertion{Type: AssertStock, Product: "gula", Stock: ptr(0.0)})

	for range 2 {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

func TestResult_AddTrace(t *testing.T) {
	r := NewResult()
	r.AddTrace(ActionAdd, map[string]any{"product": "gula"}, OutcomeOK, nil)
	r.AddTrace(ActionCheckout, nil, "EMPTY_CART", nil)
	require.Len(t, r.Trace, 2)
	assert.Equal(t, 1, r.Trace[0].Seq)
	assert.Equal(t, 2, r.Trace[1].Seq)
	assert.Equal(t, "EMPTY_CART", r.Trace[1].Outcome)
}

func TestStepArgs(t *testing.T) {
	assert.Nil(t, stepArgs(FlowStep{Action: ActionDecrement}))
	assert.Equal(t,
		map[string]any{"product": "beras", "locked": true},
		stepArgs(FlowStep{Action: ActionDecrement, Product: "beras", Locked: true}))
	assert.Equal(t,
		map[string]any{"sale": "s1", "cash": int64(500)},
		stepArgs(FlowStep{Action: ActionPay, Sale: "s1", Cash: 500}))
}
