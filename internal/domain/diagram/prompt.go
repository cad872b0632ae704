package diagram

import (
	"fmt"

	"github.com/diagrammaton/server/internal/infra/llm"
)

// Action is the high-level operation requested by the plugin.
type Action string

const (
	ActionGenerate Action = "generate"
	ActionModify   Action = "modify"
)

const generateSystemPrompt = "You are an AI assistant for Figma & FigJam, " +
	"empowering designers with rich diagrams from simple text. For basic " +
	"tasks, amplify the detail—think 'Forgot Password?' in a login flow. For " +
	"well-known or complex systems, adhere to domain-specific rules and " +
	"conditions. In cases involving loops or recursion, ensure clarity and " +
	"accuracy. When an endpoint exists, show what triggers it. Link labels " +
	"should remain succinct, using nodes for elaboration. If you're unable " +
	"to generate a useful diagram from the description, print an error " +
	"that's both witty and helpful; never say oops."

const modifySystemPrompt = "You are an AI assistant for Figma & FigJam. You " +
	"edit an existing diagram in place: the user gives you the current " +
	"diagram as JSON and instructions describing the change. Keep every " +
	"node and link the instructions don't touch, preserve existing node " +
	"ids, and apply only the requested edits. Return the complete updated " +
	"diagram, not a delta. If the instructions can't be applied, print an " +
	"error that's both witty and helpful; never say oops."

// GenerateMessages builds the message sequence for a new diagram.
// Pure and deterministic: identical input yields identical messages.
func GenerateMessages(description string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: generateSystemPrompt},
		{Role: llm.RoleUser, Content: "Diagram description: " + description},
	}
}

// ModifyMessages builds the message sequence for editing an existing
// diagram in place.
func ModifyMessages(diagramData, instructions string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: modifySystemPrompt},
		{
			Role: llm.RoleUser,
			Content: fmt.Sprintf(
				"Current diagram JSON:\n%s\n\nInstructions: %s",
				diagramData, instructions,
			),
		},
	}
}
