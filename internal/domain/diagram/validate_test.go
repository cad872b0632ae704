package diagram

import (
	"strings"
	"testing"

	"github.com/diagrammaton/server/internal/domain/fault"
)

func TestParse_FunctionCallArguments(t *testing.T) {
	t.Parallel()

	raw := `{"steps":[{"from":{"id":"a","label":"Submit","shape":"SQUARE"},` +
		`"link":{"label":"","fromMagnet":"RIGHT","toMagnet":"LEFT"},` +
		`"to":{"id":"b","label":"Approve?","shape":"DIAMOND"}}],"message":null}`

	resp, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(resp.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(resp.Steps))
	}
	step := resp.Steps[0]
	if step.From.ID != "a" || step.To.ID != "b" {
		t.Errorf("unexpected node ids: %q, %q", step.From.ID, step.To.ID)
	}
	if step.Link == nil || step.Link.FromMagnet != MagnetRight || step.Link.ToMagnet != MagnetLeft {
		t.Errorf("unexpected link: %+v", step.Link)
	}
	if resp.Message != nil {
		t.Errorf("expected nil message with non-empty steps, got %q", *resp.Message)
	}
}

func TestParse_RepairFromProse(t *testing.T) {
	t.Parallel()

	raw := `Sure! {"steps":[],"message":"Too vague to diagram."} Hope that helps!`
	resp, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(resp.Steps) != 0 {
		t.Errorf("expected no steps, got %d", len(resp.Steps))
	}
	if resp.Message == nil || *resp.Message != "Too vague to diagram." {
		t.Errorf("expected message passed through verbatim, got %v", resp.Message)
	}
}

func TestParse_BareStepsArray(t *testing.T) {
	t.Parallel()

	raw := `Here you go: [{"from":{"id":"a","label":"Start","shape":"ELLIPSE"},` +
		`"link":null,"to":{"id":"b","label":"End","shape":"ELLIPSE"}}]`
	resp, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(resp.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(resp.Steps))
	}
	if resp.Steps[0].Link != nil {
		t.Error("expected nil link")
	}
}

func TestParse_Unparseable(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"I cannot draw that, sorry.",
		`{"steps":[{"from":`, // truncated
		"",
	} {
		_, err := Parse(raw)
		if !fault.IsKind(err, fault.KindUnableToParse) {
			t.Errorf("Parse(%q): expected KindUnableToParse, got %v", raw, err)
		}
	}
}

func TestValidate_StepsMessageInvariant(t *testing.T) {
	t.Parallel()

	// Empty steps with no message is a contract violation.
	if err := Validate(&Response{}); !fault.IsKind(err, fault.KindUnableToParse) {
		t.Errorf("expected KindUnableToParse for empty response, got %v", err)
	}

	// Empty steps with a message is a valid "declined" result.
	msg := "Nothing to draw here."
	if err := Validate(&Response{Message: &msg}); err != nil {
		t.Errorf("declined response should validate, got %v", err)
	}

	// Non-empty steps clear a stray message.
	stray := "ignore me"
	resp := &Response{
		Steps: []Step{{
			From: Node{ID: "a", Label: "A", Shape: ShapeSquare},
			To:   Node{ID: "b", Label: "B", Shape: ShapeSquare},
		}},
		Message: &stray,
	}
	if err := Validate(resp); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if resp.Message != nil {
		t.Error("expected message cleared when steps are present")
	}
}

func TestValidate_Violations(t *testing.T) {
	t.Parallel()

	node := func(id string) Node { return Node{ID: id, Label: "n", Shape: ShapeSquare} }

	tests := []struct {
		name string
		resp *Response
	}{
		{
			name: "unknown shape",
			resp: &Response{Steps: []Step{{
				From: Node{ID: "a", Label: "A", Shape: "PENTAGON"},
				To:   node("b"),
			}}},
		},
		{
			name: "empty node id",
			resp: &Response{Steps: []Step{{From: node(""), To: node("b")}}},
		},
		{
			name: "label too long",
			resp: &Response{Steps: []Step{{
				From: Node{ID: "a", Label: strings.Repeat("x", MaxLabelLength+1), Shape: ShapeSquare},
				To:   node("b"),
			}}},
		},
		{
			name: "link with missing magnet",
			resp: &Response{Steps: []Step{{
				From: node("a"),
				Link: &Link{FromMagnet: MagnetRight},
				To:   node("b"),
			}}},
		},
		{
			name: "id reused with different shape",
			resp: &Response{Steps: []Step{{
				From: Node{ID: "a", Label: "A", Shape: ShapeSquare},
				To:   Node{ID: "a", Label: "A", Shape: ShapeDiamond},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.resp); !fault.IsKind(err, fault.KindUnableToParse) {
				t.Errorf("expected KindUnableToParse, got %v", err)
			}
		})
	}
}

func TestValidate_StepCeiling(t *testing.T) {
	t.Parallel()

	steps := make([]Step, MaxSteps+1)
	for i := range steps {
		steps[i] = Step{
			From: Node{ID: "a", Label: "A", Shape: ShapeSquare},
			To:   Node{ID: "b", Label: "B", Shape: ShapeSquare},
		}
	}
	if err := Validate(&Response{Steps: steps}); !fault.IsKind(err, fault.KindUnableToParse) {
		t.Errorf("expected KindUnableToParse over the ceiling, got %v", err)
	}
	if err := Validate(&Response{Steps: steps[:MaxSteps]}); err != nil {
		t.Errorf("exactly MaxSteps should validate, got %v", err)
	}
}
