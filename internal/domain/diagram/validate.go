package diagram

import (
	"encoding/json"
	"fmt"

	"github.com/diagrammaton/server/internal/domain/fault"
	"github.com/diagrammaton/server/pkg/jsonscan"
)

// Parse turns raw model output into a validated Response. The raw text may
// be tool-call arguments, a plain JSON body, or free text with JSON
// embedded in prose; repair is attempted in that order. When every attempt
// fails the returned error is a fault of kind KindUnableToParse.
func Parse(raw string) (*Response, error) {
	resp, err := decode(raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnableToParse, err).
			With("rawLength", len(raw))
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// decode tries progressively looser parses of raw.
func decode(raw string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err == nil {
		return &resp, nil
	}

	// The model may have wrapped the JSON in prose. Retry on the first
	// balanced object.
	if slice := jsonscan.FirstObject(raw); slice != "" {
		if err := json.Unmarshal([]byte(slice), &resp); err == nil {
			return &resp, nil
		}
	}

	// Last resort: a bare steps array with no wrapping object.
	if slice := jsonscan.FirstArray(raw); slice != "" {
		var steps []Step
		if err := json.Unmarshal([]byte(slice), &steps); err == nil {
			return &Response{Steps: steps}, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON in model output")
}

// Validate checks resp against the output contract and normalizes the
// steps/message invariant: empty steps require a message, non-empty steps
// clear it. Violations are faults of kind KindUnableToParse, since from the
// caller's perspective both mean "no usable diagram".
func Validate(resp *Response) error {
	if len(resp.Steps) > MaxSteps {
		return parseFault(fmt.Sprintf("steps exceed maximum of %d", MaxSteps))
	}

	seen := make(map[string]Shape, len(resp.Steps)*2)
	for i, step := range resp.Steps {
		if err := validateNode(step.From, seen); err != nil {
			return parseFault(fmt.Sprintf("step %d from: %v", i, err))
		}
		if err := validateNode(step.To, seen); err != nil {
			return parseFault(fmt.Sprintf("step %d to: %v", i, err))
		}
		if step.Link != nil {
			if !validMagnet(step.Link.FromMagnet) || !validMagnet(step.Link.ToMagnet) {
				return parseFault(fmt.Sprintf("step %d link: both magnets must be set to valid positions", i))
			}
		}
	}

	if len(resp.Steps) == 0 {
		if resp.Message == nil || *resp.Message == "" {
			return parseFault("empty steps with no explanatory message")
		}
		return nil
	}

	// Non-empty steps: the message slot is unused.
	resp.Message = nil
	return nil
}

// validateNode checks one node and records its id. A node id may recur
// (the same node appears in several steps) but must always carry the same
// shape; two different nodes sharing an id is a contract violation.
func validateNode(n Node, seen map[string]Shape) error {
	if n.ID == "" {
		return fmt.Errorf("node id must be non-empty")
	}
	if n.Label == "" || len(n.Label) > MaxLabelLength {
		return fmt.Errorf("node label must be 1-%d characters", MaxLabelLength)
	}
	if !validShape(n.Shape) {
		return fmt.Errorf("unknown shape %q", n.Shape)
	}
	if prev, ok := seen[n.ID]; ok && prev != n.Shape {
		return fmt.Errorf("node id %q reused with a different shape", n.ID)
	}
	seen[n.ID] = n.Shape
	return nil
}

func parseFault(detail string) error {
	return fault.New(fault.KindUnableToParse).With("detail", detail)
}
