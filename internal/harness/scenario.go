package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSurcharge is the 0.25 kg pack surcharge used when a scenario does
// not set plu_surcharge.
const DefaultSurcharge int64 = 1000

// Scenario defines a till session to replay.
// A scenario seeds a catalog, rings up sales, drives their lifecycle and
// asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Surcharge overrides DefaultSurcharge.
	Surcharge *int64 `yaml:"plu_surcharge,omitempty"`

	// NumberPrefix prefixes generated transaction numbers.
	// Defaults to "TRX-TEST-".
	NumberPrefix string `yaml:"number_prefix,omitempty"`

	// Products seeds the catalog before the flow runs.
	Products []ProductFixture `yaml:"products"`

	// Flow is the sequence of till operations.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: stock, status, unsynced_count, trace_count,
	// trace_order, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ProductFixture is one catalog entry. Key is how flow steps refer to it.
type ProductFixture struct {
	Key       string  `yaml:"key"`
	Name      string  `yaml:"name"`
	Price     int64   `yaml:"price"`
	CostPrice int64   `yaml:"cost_price,omitempty"`
	Stock     float64 `yaml:"stock"`
	MinStock  float64 `yaml:"min_stock,omitempty"`
	Barcode   string  `yaml:"barcode,omitempty"`
	PLU       bool    `yaml:"plu,omitempty"`
}

// FlowStep is one till operation.
//
// Fields apply per action:
//   - add: product, qty (default 1)
//   - weigh: product, kg
//   - increment, decrement: product, locked
//   - checkout: method, cash, name, as
//   - pay: sale, cash
//   - cancel, refund: sale
type FlowStep struct {
	Action  string  `yaml:"action"`
	Product string  `yaml:"product,omitempty"`
	Qty     float64 `yaml:"qty,omitempty"`
	Kg      float64 `yaml:"kg,omitempty"`
	Locked  bool    `yaml:"locked,omitempty"`
	Method  string  `yaml:"method,omitempty"`
	Cash    int64   `yaml:"cash,omitempty"`
	Name    string  `yaml:"name,omitempty"`

	// As labels the sale a checkout commits; Sale refers back to it.
	As   string `yaml:"as,omitempty"`
	Sale string `yaml:"sale,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior. Only set fields are
// checked.
type ExpectClause struct {
	// Error is the expected error code (e.g. "STOCK_INSUFFICIENT").
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	Status    string `yaml:"status,omitempty"`
	Total     *int64 `yaml:"total,omitempty"`
	Change    *int64 `yaml:"change,omitempty"`
	CartTotal *int64 `yaml:"cart_total,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stock": product's stock equals Stock
	// - "status": sale's status equals Status
	// - "unsynced_count": exactly Count transactions await upload
	// - "trace_count": Action appears exactly Count times
	// - "trace_order": Actions appear in order
	// - "final_state": query Table and verify expected values
	Type string `yaml:"type"`

	Product string   `yaml:"product,omitempty"`
	Stock   *float64 `yaml:"stock,omitempty"`

	Sale   string `yaml:"sale,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Action and Actions are flow action names (used by trace_count,
	// trace_order).
	Action  string   `yaml:"action,omitempty"`
	Actions []string `yaml:"actions,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect drive final_state. Where and Expect use
	// column names; all Where fields must match and Expect is a subset
	// match.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Flow actions.
const (
	ActionAdd       = "add"
	ActionWeigh     = "weigh"
	ActionIncrement = "increment"
	ActionDecrement = "decrement"
	ActionCheckout  = "checkout"
	ActionPay       = "pay"
	ActionCancel    = "cancel"
	ActionRefund    = "refund"
)

// Assertion type constants.
const (
	AssertStock         = "stock"
	AssertStatus        = "status"
	AssertUnsyncedCount = "unsynced_count"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// reference resolves to a product or an earlier labelled sale.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Surcharge != nil && *s.Surcharge < 0 {
		return fmt.Errorf("plu_surcharge must be non-negative")
	}

	products := make(map[string]bool, len(s.Products))
	for i, p := range s.Products {
		switch {
		case p.Key == "":
			return fmt.Errorf("products[%d]: key is required", i)
		case products[p.Key]:
			return fmt.Errorf("products[%d]: duplicate key %q", i, p.Key)
		case p.Name == "":
			return fmt.Errorf("products[%d]: name is required", i)
		case p.Price < 0 || p.CostPrice < 0:
			return fmt.Errorf("products[%d]: prices must be non-negative", i)
		case p.Stock < 0:
			return fmt.Errorf("products[%d]: stock must be non-negative", i)
		}
		products[p.Key] = true
	}

	sales := make(map[string]bool)
	for i, step := range s.Flow {
		if err := validateStep(i, step, products, sales); err != nil {
			return err
		}
		if step.As != "" {
			sales[step.As] = true
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, products, sales); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step FlowStep, products, sales map[string]bool) error {
	needProduct := func() error {
		if !products[step.Product] {
			return fmt.Errorf("flow[%d]: %s needs a known product, got %q", i, step.Action, step.Product)
		}
		return nil
	}
	needSale := func() error {
		if !sales[step.Sale] {
			return fmt.Errorf("flow[%d]: %s needs an earlier checkout labelled %q", i, step.Action, step.Sale)
		}
		return nil
	}

	switch step.Action {
	case "":
		return fmt.Errorf("flow[%d]: action is required", i)
	case ActionAdd:
		if step.Qty < 0 {
			return fmt.Errorf("flow[%d]: qty must be non-negative", i)
		}
		return needProduct()
	case ActionWeigh:
		if step.Kg == 0 {
			return fmt.Errorf("flow[%d]: kg is required for weigh", i)
		}
		return needProduct()
	case ActionIncrement, ActionDecrement:
		return needProduct()
	case ActionCheckout:
		if step.Method == "" {
			return fmt.Errorf("flow[%d]: method is required for checkout", i)
		}
		if step.As != "" && sales[step.As] {
			return fmt.Errorf("flow[%d]: sale label %q already used", i, step.As)
		}
		return nil
	case ActionPay, ActionCancel, ActionRefund:
		return needSale()
	}
	return fmt.Errorf("flow[%d]: unknown action %q", i, step.Action)
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, products, sales map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStock:
		if !products[a.Product] {
			return fmt.Errorf("assertions[%d]: stock needs a known product, got %q", index, a.Product)
		}
		if a.Stock == nil {
			return fmt.Errorf("assertions[%d]: stock value is required", index)
		}
	case AssertStatus:
		if !sales[a.Sale] {
			return fmt.Errorf("assertions[%d]: status needs a labelled sale, got %q", index, a.Sale)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status value is required", index)
		}
	case AssertUnsyncedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for unsynced_count", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
