package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/order"
)

// AssertionError is returned when an expectation fails.
// It includes the step list to help debug the failure.
type AssertionError struct {
	Type     string // "expect_error", "exists", "updates_count", "remaining_amount"
	Target   string // event origin or record identity
	Expected string
	Actual   string
	Steps    []Step
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (%s)\n", e.Type, e.Target)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Steps) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, s := range e.Steps {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", s.Index, s.Origin, s.Result, s.ID)
		}
	}

	return buf.String()
}

// checkStep compares the engine result for one event with its expect_error.
func checkStep(ev EventStep, step Step) error {
	got := engine.Result(step.Result)
	if ev.ExpectError != "" {
		if got == engine.Result(ev.ExpectError) {
			return nil
		}
		return &AssertionError{
			Type:     "expect_error",
			Target:   step.Origin,
			Expected: ev.ExpectError,
			Actual:   step.Result,
		}
	}

	if got == engine.ResultCreated || got == engine.ResultUpdated {
		return nil
	}
	return &AssertionError{
		Type:     "expect_error",
		Target:   step.Origin,
		Expected: "event merged",
		Actual:   step.Result,
	}
}

// EvaluateExpectations checks every expectation against result and returns
// one message per failure.
func EvaluateExpectations(result *Result, expectations []Expectation) []string {
	var errs []string
	for i, exp := range expectations {
		if err := assertExpectation(result, exp); err != nil {
			errs = append(errs, fmt.Sprintf("expect[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func assertExpectation(result *Result, exp Expectation) error {
	id, err := resolveID(result, exp)
	if err != nil {
		return err
	}

	rec, found := result.record(id)
	if found != exp.wantExists() {
		return &AssertionError{
			Type:     "exists",
			Target:   id,
			Expected: fmt.Sprintf("%t", exp.wantExists()),
			Actual:   fmt.Sprintf("%t", found),
			Steps:    result.Steps,
		}
	}
	if !found {
		return nil
	}

	if exp.UpdatesCount != nil && rec.UpdatesCount != *exp.UpdatesCount {
		return &AssertionError{
			Type:     "updates_count",
			Target:   id,
			Expected: fmt.Sprintf("%d", *exp.UpdatesCount),
			Actual:   fmt.Sprintf("%d", rec.UpdatesCount),
			Steps:    result.Steps,
		}
	}

	if exp.RemainingAmount != nil {
		want, err := order.ParseQuantity(order.Quantity(*exp.RemainingAmount))
		if err != nil {
			return fmt.Errorf("remaining_amount %q: %w", *exp.RemainingAmount, err)
		}
		if rec.RemainingAmount == nil || rec.RemainingAmount.Cmp(want) != 0 {
			actual := "null"
			if rec.RemainingAmount != nil {
				actual = rec.RemainingAmount.String()
			}
			return &AssertionError{
				Type:     "remaining_amount",
				Target:   id,
				Expected: want.String(),
				Actual:   actual,
				Steps:    result.Steps,
			}
		}
	}

	return nil
}

// resolveID returns the normalized identity an expectation refers to.
func resolveID(result *Result, exp Expectation) (string, error) {
	if exp.Event != nil {
		if *exp.Event < 0 || *exp.Event >= len(result.Steps) {
			return "", fmt.Errorf("event %d out of range", *exp.Event)
		}
		step := result.Steps[*exp.Event]
		if step.ID == "" {
			return "", fmt.Errorf("event %d (%s) has no identity: %s", *exp.Event, step.Origin, step.Result)
		}
		return step.ID, nil
	}

	id, err := order.NormalizeID(exp.ID)
	if err != nil {
		return "", fmt.Errorf("id %q: %w", exp.ID, err)
	}
	return id, nil
}
