package spec

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E299).
const (
	ErrNameRequired          = "E201" // name is required
	ErrRegionTooLarge        = "E202" // cleanup region exceeds size limits
	ErrPositionOutsideRegion = "E203" // timeline touches a block outside the cleanup region
	ErrEmptyDependency       = "E204" // blank dependency name
	ErrBlockRequired         = "E205" // action or check without a block id
	ErrStateRequired         = "E206" // assert_state without a property name
	ErrActionRequired        = "E207" // timeline event without an action
	ErrCoordinateOutOfRange  = "E208" // coordinate beyond ±MaxCoordinate
	ErrCheckHasProperties    = "E209" // assert check with a block-state property list
)

// ValidationError is one problem found in a TestSpec.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem in a spec.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the model-level invariants of a spec and returns every
// violation found (it does not stop at the first). Structural timeline
// problems such as negative ticks are reported by the compiler instead.
func (s *TestSpec) Validate() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrNameRequired,
		})
	}

	for i, dep := range s.Dependencies {
		if strings.TrimSpace(dep) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("dependencies[%d]", i),
				Message: "dependency name must be non-empty",
				Code:    ErrEmptyDependency,
			})
		}
	}

	region, hasRegion := s.CleanupRegion()
	if hasRegion {
		if oob := validateBounds("setup.cleanup.region", region[:]); len(oob) > 0 {
			errs = append(errs, oob...)
		} else {
			errs = append(errs, validateRegionSize(region)...)
		}
	}

	for i, ev := range s.Timeline {
		field := fmt.Sprintf("timeline[%d]", i)
		if ev.Action == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "event has no action",
				Code:    ErrActionRequired,
			})
			continue
		}
		errs = append(errs, validateAction(field, ev.Action)...)
		errs = append(errs, validateBounds(field, ev.Action.Positions())...)
		if !hasRegion {
			continue
		}
		for _, p := range ev.Action.Positions() {
			if !region.Contains(p) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("position %s is outside cleanup region %s", p, region),
					Code:    ErrPositionOutsideRegion,
				})
			}
		}
	}

	return errs
}

func validateBounds(field string, ps []Pos) []ValidationError {
	var errs []ValidationError
	for _, p := range ps {
		if !p.InBounds() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("position %s is beyond ±%d", p, MaxCoordinate),
				Code:    ErrCoordinateOutOfRange,
			})
		}
	}
	return errs
}

func validateRegionSize(r Region) []ValidationError {
	var errs []ValidationError
	w, h, d := r.Size()
	limits := []struct {
		axis  string
		size  int
		limit int
	}{
		{"width", w, MaxWidth},
		{"height", h, MaxHeight},
		{"depth", d, MaxDepth},
	}
	for _, l := range limits {
		if l.size > l.limit {
			errs = append(errs, ValidationError{
				Field:   "setup.cleanup.region",
				Message: fmt.Sprintf("cleanup region %s %d exceeds maximum %d", l.axis, l.size, l.limit),
				Code:    ErrRegionTooLarge,
			})
		}
	}
	return errs
}

func validateAction(field string, a Action) []ValidationError {
	var errs []ValidationError
	missingBlock := func(f string) {
		errs = append(errs, ValidationError{
			Field:   f,
			Message: "block id is required",
			Code:    ErrBlockRequired,
		})
	}

	switch act := a.(type) {
	case Place:
		if act.Block == "" {
			missingBlock(field + ".block")
		}
	case PlaceEach:
		for i, b := range act.Blocks {
			if b.Block == "" {
				missingBlock(fmt.Sprintf("%s.blocks[%d].block", field, i))
			}
		}
	case Fill:
		if act.With == "" {
			missingBlock(field + ".with")
		}
	case Assert:
		for i, c := range act.Checks {
			if c.Is == "" {
				missingBlock(fmt.Sprintf("%s.checks[%d].is", field, i))
			}
			if strings.Contains(c.Is, "[") {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.checks[%d].is", field, i),
					Message: fmt.Sprintf("%q: assert compares the block id only, use assert_state for properties", c.Is),
					Code:    ErrCheckHasProperties,
				})
			}
		}
	case AssertState:
		if act.State == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".state",
				Message: "state property name is required",
				Code:    ErrStateRequired,
			})
		}
	case Remove:
	}
	return errs
}
