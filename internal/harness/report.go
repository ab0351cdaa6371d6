package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/flint/internal/engine"
)

// Report aggregates the verdicts of one run, in execution order.
type Report struct {
	RunID    string           `json:"run_id"`
	Verdicts []engine.Verdict `json:"verdicts"`
	Passed   int              `json:"passed"`
	Failed   int              `json:"failed"`
	Errored  int              `json:"errored"`
}

func (r *Report) add(v engine.Verdict) {
	r.Verdicts = append(r.Verdicts, v)
	switch v.Status {
	case engine.StatusPassed:
		r.Passed++
	case engine.StatusFailed:
		r.Failed++
	case engine.StatusErrored:
		r.Errored++
	}
}

// OK reports whether every test passed.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Errored == 0
}

// Verdict returns the verdict for the named test.
func (r *Report) Verdict(test string) (engine.Verdict, bool) {
	for _, v := range r.Verdicts {
		if v.Test == test {
			return v, true
		}
	}
	return engine.Verdict{}, false
}

// WriteText renders the report for humans. Assertion failures are listed
// under FAIL; fatal errors are marked ERROR.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", r.RunID)
	for _, v := range r.Verdicts {
		switch v.Status {
		case engine.StatusPassed:
			fmt.Fprintf(&b, "PASS  %s (%d checks)\n", v.Test, v.Checks)
		case engine.StatusFailed:
			fmt.Fprintf(&b, "FAIL  %s (%d checks, %d failed)\n", v.Test, v.Checks, len(v.Failures))
		case engine.StatusErrored:
			fmt.Fprintf(&b, "ERROR %s: %s\n", v.Test, v.Error)
		}
		for _, f := range v.Failures {
			fmt.Fprintf(&b, "      %s\n", f)
		}
	}
	fmt.Fprintf(&b, "\n%d tests: %d passed, %d failed, %d errored\n",
		len(r.Verdicts), r.Passed, r.Failed, r.Errored)
	_, err := io.WriteString(w, b.String())
	return err
}
