package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
)

var columnName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// AssertionError describes a failed assertion. Trace is attached for
// assertions about the flow itself.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n  Expected: %s\n  Actual: %s\n", e.Type, e.Expected, e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&b, "  [%d] %s %v -> %s\n", ev.Seq, ev.Action, ev.Args, ev.Outcome)
	}
	return b.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	Products map[string]int64 // fixture key -> product id
	Sales    map[string]int64 // checkout label -> transaction id
}

// assertStock checks a product's stock in the store.
func assertStock(actx *AssertionContext, assertion Assertion) error {
	p, err := actx.Store.GetProduct(actx.Ctx, actx.Products[assertion.Product])
	if err != nil {
		return fmt.Errorf("stock %s: %w", assertion.Product, err)
	}
	if !pos.QuantityEqual(p.Stock, *assertion.Stock) {
		return &AssertionError{
			Type:     AssertStock,
			Expected: fmt.Sprintf("%s stock %g", assertion.Product, *assertion.Stock),
			Actual:   fmt.Sprintf("%g", p.Stock),
		}
	}
	return nil
}

// assertStatus checks a labelled sale's status.
func assertStatus(actx *AssertionContext, trace []TraceEvent, assertion Assertion) error {
	id, ok := actx.Sales[assertion.Sale]
	if !ok {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("sale %s committed", assertion.Sale),
			Actual:   "checkout never succeeded",
			Trace:    trace,
		}
	}
	tx, err := actx.Store.GetTransaction(actx.Ctx, id)
	if err != nil {
		return fmt.Errorf("status %s: %w", assertion.Sale, err)
	}
	if string(tx.Status) != assertion.Status {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("sale %s status %s", assertion.Sale, assertion.Status),
			Actual:   string(tx.Status),
			Trace:    trace,
		}
	}
	return nil
}

func assertUnsyncedCount(actx *AssertionContext, assertion Assertion) error {
	n, err := actx.Store.CountUnsynced(actx.Ctx)
	if err != nil {
		return fmt.Errorf("unsynced_count: %w", err)
	}
	if n != assertion.Count {
		return &AssertionError{
			Type:     AssertUnsyncedCount,
			Expected: fmt.Sprintf("%d unsynced transactions", assertion.Count),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertTraceOrder checks that Actions occur as a subsequence of the
// trace. Other actions may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	want := assertion.Actions
	next := 0
	for _, event := range trace {
		if next < len(want) && event.Action == want[next] {
			next++
		}
	}
	if next == len(want) {
		return nil
	}

	missing := want[next]
	if countAction(trace, missing) == 0 {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("all actions present: %v", want),
			Actual:   "missing action: " + missing,
			Trace:    trace,
		}
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("actions in order: %v", want),
		Actual:   fmt.Sprintf("%s should be before %s", want[next-1], missing),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	if n := countAction(trace, assertion.Action); n != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", n),
			Trace:    trace,
		}
	}
	return nil
}

func countAction(trace []TraceEvent, action string) int {
	n := 0
	for _, event := range trace {
		if event.Action == action {
			n++
		}
	}
	return n
}

// stateTables are the local tables a final_state assertion may read.
var stateTables = map[string]bool{
	"categories":        true,
	"products":          true,
	"transactions":      true,
	"transaction_items": true,
}

// assertFinalState checks that exactly one row of a local table matches
// Where and carries the Expect values.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !stateTables[assertion.Table] {
		return fmt.Errorf("invalid table name %q", assertion.Table)
	}
	where, args, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}
	query := "SELECT * FROM " + assertion.Table
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := selectRows(ctx, st, query, args)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", assertion.Table, err)
	}

	desc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, desc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, desc),
			Actual:   fmt.Sprintf("%d rows matched", len(rows)),
		}
	}

	row := rows[0]
	for _, col := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[col]
		got, ok := row[col]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", col),
				Actual:   fmt.Sprintf("columns are %v", sortedKeys(row)),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", col, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// selectRows reads every matching row into a column map.
func selectRows(ctx context.Context, st *store.Store, query string, args []any) ([]map[string]any, error) {
	rows, err := st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// buildWhereClause returns a parameterised conjunction over the sorted
// keys of where. Column names must be plain identifiers.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	var conds []string
	var args []any
	for _, col := range sortedKeys(where) {
		if !columnName.MatchString(col) {
			return "", nil, fmt.Errorf("invalid column name %q", col)
		}
		conds = append(conds, col+" = ?")
		args = append(args, sqlValue(where[col]))
	}
	return strings.Join(conds, " AND "), args, nil
}

// sqlValue maps YAML values onto SQLite storage classes.
func sqlValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case string, int, int64, float64:
		return val
	}
	return fmt.Sprint(v)
}

func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, col := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", col, where[col]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a YAML value with a column value. SQLite
// hands back INTEGER as int64, REAL as float64 and booleans as 0/1,
// while YAML decodes whole numbers as int.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	switch exp := expected.(type) {
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	}
	if exp, ok := toFloat(expected); ok {
		act, ok := toFloat(actual)
		return ok && math.Abs(exp-act) < pos.QuantityEpsilon
	}
	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// EvaluateAssertions returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, assertion := range assertions {
		var err error
		needsStore := assertion.Type != AssertTraceOrder && assertion.Type != AssertTraceCount
		if needsStore && (actx == nil || actx.Store == nil) {
			failures = append(failures, fmt.Sprintf("assertion[%d]: %s requires database context", i, assertion.Type))
			continue
		}

		switch assertion.Type {
		case AssertStock:
			err = assertStock(actx, assertion)
		case AssertStatus:
			err = assertStatus(actx, result.Trace, assertion)
		case AssertUnsyncedCount:
			err = assertUnsyncedCount(actx, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(actx.Ctx, actx.Store, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
