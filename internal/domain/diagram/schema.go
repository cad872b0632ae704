// Package diagram defines the structured output contract for generated
// diagrams: node/link/step shapes, the provider-facing JSON schema, the
// prompt builder, and the response validator.
package diagram

import "github.com/diagrammaton/server/internal/infra/llm"

// Shape is the fixed node shape vocabulary. The renderer only understands
// these values, so the schema pins them as an enum.
type Shape string

const (
	ShapeRoundedRectangle   Shape = "ROUNDED_RECTANGLE"
	ShapeEllipse            Shape = "ELLIPSE"
	ShapeDiamond            Shape = "DIAMOND"
	ShapeSquare             Shape = "SQUARE"
	ShapeTriangleUp         Shape = "TRIANGLE_UP"
	ShapeTriangleDown       Shape = "TRIANGLE_DOWN"
	ShapeDatabase           Shape = "ENG_DATABASE"
	ShapeQueue              Shape = "ENG_QUEUE"
	ShapeFile               Shape = "FILE"
	ShapeFolder             Shape = "FOLDER"
	ShapeParallelogramRight Shape = "PARALLELOGRAM_RIGHT"
	ShapeParallelogramLeft  Shape = "PARALLELOGRAM_LEFT"
)

// Magnet is an attachment point on a node where a link starts or ends.
type Magnet string

const (
	MagnetTop    Magnet = "TOP"
	MagnetRight  Magnet = "RIGHT"
	MagnetBottom Magnet = "BOTTOM"
	MagnetLeft   Magnet = "LEFT"
)

// MaxSteps caps the steps array. Anything larger is rejected by the
// validator; the renderer cannot lay out more anyway.
const MaxSteps = 250

// MaxLabelLength caps node labels.
const MaxLabelLength = 120

// Node is a single diagram node.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Shape Shape  `json:"shape"`
}

// Link connects two nodes. Optional within a step; when present both
// magnets must be set. The label may be blank.
type Link struct {
	Label      string `json:"label"`
	FromMagnet Magnet `json:"fromMagnet"`
	ToMagnet   Magnet `json:"toMagnet"`
}

// Step is the atomic output unit: from-node, optional link, to-node.
// Step order is the rendering/traversal order.
type Step struct {
	From Node  `json:"from"`
	Link *Link `json:"link"`
	To   Node  `json:"to"`
}

// Response is the full structured model output. Invariant: steps empty
// implies message non-nil (the model explains why), and steps non-empty
// implies message nil.
type Response struct {
	Steps   []Step  `json:"steps"`
	Message *string `json:"message"`
}

var shapeNames = []string{
	string(ShapeRoundedRectangle),
	string(ShapeEllipse),
	string(ShapeDiamond),
	string(ShapeSquare),
	string(ShapeTriangleUp),
	string(ShapeTriangleDown),
	string(ShapeDatabase),
	string(ShapeQueue),
	string(ShapeFile),
	string(ShapeFolder),
	string(ShapeParallelogramRight),
	string(ShapeParallelogramLeft),
}

var magnetNames = []string{
	string(MagnetTop),
	string(MagnetRight),
	string(MagnetBottom),
	string(MagnetLeft),
}

func validShape(s Shape) bool {
	for _, name := range shapeNames {
		if string(s) == name {
			return true
		}
	}
	return false
}

func validMagnet(m Magnet) bool {
	for _, name := range magnetNames {
		if string(m) == name {
			return true
		}
	}
	return false
}

// nodeSchema, linkSchema and responseSchema are plain map trees so they can
// be attached either as function-calling parameters or as a structured
// output response format, depending on what the provider supports.

func nodeSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"id", "label", "shape"},
		"description": "A node in the diagram. The shape of the node should " +
			"make sense in the overall context of the diagram.",
		"properties": map[string]any{
			"id": map[string]any{
				"type": "string",
				"description": "A unique identifier for the diagram node. " +
					"Must be unique across all diagram nodes.",
			},
			"label": map[string]any{
				"type":        "string",
				"description": "The label for the diagram node.",
			},
			"shape": map[string]any{
				"type": "string",
				"enum": shapeNames,
				"description": "The shape for the diagram node. Must be one " +
					"of the enum values.",
			},
		},
	}
}

func linkSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"description": "An optional, connective link between two nodes taking " +
			"magnet positions into account. Forward links between adjacent " +
			"nodes run RIGHT to LEFT. A decision's \"No\" exit leaves from " +
			"BOTTOM. Backward references use BOTTOM/TOP to stay out of the " +
			"default lane. Sometimes it's best not to have a label where a " +
			"link is obvious!",
		"properties": map[string]any{
			"label": map[string]any{
				"type":        "string",
				"description": "A very concise label, no more than 2-3 words.",
			},
			"fromMagnet": map[string]any{
				"type":        "string",
				"enum":        magnetNames,
				"description": "Magnet position on the origin node where the link originates.",
			},
			"toMagnet": map[string]any{
				"type":        "string",
				"enum":        magnetNames,
				"description": "Magnet position on the target node where the link terminates.",
			},
		},
	}
}

// ResponseSchema returns the JSON schema for the full structured response
// (steps plus message). Attached as the text format on the Responses API
// and as response_format on chat completions.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"steps"},
		"properties": map[string]any{
			"steps": map[string]any{
				"type":     "array",
				"maxItems": MaxSteps,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from": nodeSchema(),
						"link": linkSchema(),
						"to":   nodeSchema(),
					},
				},
			},
			"message": map[string]any{
				"type": []string{"string", "null"},
				"description": "A witty and very concise description of the " +
					"issue encountered and how the user can resolve it. Null " +
					"when steps were produced.",
			},
		},
	}
}

// PrintDiagramTool is the name of the tool carrying diagram output.
const PrintDiagramTool = "print_diagram"

// PrintErrorTool is the name of the tool carrying a user-facing refusal.
const PrintErrorTool = "print_error"

// Tools returns the function-calling tool definitions for providers on the
// function-calling path.
func Tools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        PrintDiagramTool,
			Description: "Translates a diagram description into valid JSON",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"steps"},
				"properties": map[string]any{
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"from": nodeSchema(),
								"link": linkSchema(),
								"to":   nodeSchema(),
							},
						},
					},
				},
			},
		},
		{
			Name: PrintErrorTool,
			Description: "Prints a cheeky, witty, and very concise user-facing " +
				"error explaining why you weren't able to draw a diagram.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"message"},
				"properties": map[string]any{
					"message": map[string]any{
						"type": "string",
						"description": "A witty and very concise description of " +
							"the issue encountered and how the user can resolve it.",
					},
				},
			},
		},
	}
}
