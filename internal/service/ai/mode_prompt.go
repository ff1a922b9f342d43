package ai

import (
	"fmt"
	"strings"

	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// personaPreamble is shared by every mode: the companion's voice.
const personaPreamble = `You are Wren, a warm and perceptive companion who helps people turn their days into stories worth keeping. You listen closely, remember what matters, and reply in a natural, encouraging voice. You never lecture, you never moralize, and you keep your replies conversational rather than essay-length.`

// PromptTemplate is the hand-authored prompt material for one mode.
type PromptTemplate struct {
	SystemPrompt     string
	OpeningLine      string
	ShortOpeningLine string
	Hints            []string
	Rules            []string
}

// ModePromptManager holds the per-mode templates.
type ModePromptManager struct {
	templates map[chat.Mode]*PromptTemplate
}

// NewModePromptManager loads the built-in templates.
func NewModePromptManager() *ModePromptManager {
	manager := &ModePromptManager{
		templates: make(map[chat.Mode]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the template for a mode.
func (pm *ModePromptManager) GetPromptTemplate(mode chat.Mode) (*PromptTemplate, error) {
	template, exists := pm.templates[mode]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for mode: %s", mode)
	}
	return template, nil
}

// BuildSystemPrompt assembles the full system prompt for a mode. For journal
// mode, an active guided prompt is appended as context so the companion works
// through one instruction step at a time instead of repeating the whole
// prompt back.
func (pm *ModePromptManager) BuildSystemPrompt(mode chat.Mode, journalPrompt *chat.JournalPrompt) string {
	template, err := pm.GetPromptTemplate(mode)
	if err != nil {
		return personaPreamble
	}

	base := fmt.Sprintf(`%s

%s

Guidance:
- %s

Conversation rules:
- %s`,
		personaPreamble,
		template.SystemPrompt,
		strings.Join(template.Hints, "\n- "),
		strings.Join(template.Rules, "\n- "),
	)

	if mode != chat.ModeJournal || journalPrompt == nil {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString("\n\nThe user is working through a guided journal prompt:\n")
	builder.WriteString(fmt.Sprintf("Title: %s\n", journalPrompt.Title))
	builder.WriteString(fmt.Sprintf("Question: %s\n", journalPrompt.Prompt))
	if len(journalPrompt.Instructions) > 0 {
		builder.WriteString("Steps:\n")
		for i, step := range journalPrompt.Instructions {
			builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
		}
	}
	builder.WriteString("Focus the conversation on one step at a time. Do not restate the whole prompt; move the user gently to whichever step they have not explored yet.")
	return builder.String()
}

// OpeningMessage returns the assistant message that seeds a new conversation.
// Story mode greets first-time visitors with the shorter line.
func (pm *ModePromptManager) OpeningMessage(mode chat.Mode, firstVisit bool) string {
	template, err := pm.GetPromptTemplate(mode)
	if err != nil {
		return "Hello! What would you like to talk about today?"
	}

	if mode == chat.ModeStory && firstVisit && template.ShortOpeningLine != "" {
		return template.ShortOpeningLine
	}
	return template.OpeningLine
}

func (pm *ModePromptManager) loadDefaultTemplates() {
	pm.templates[chat.ModeStory] = &PromptTemplate{
		SystemPrompt:     `Mode: story. The user is telling the ongoing story of their life. Help them narrate it - the scenes, the characters, the turning points - so ordinary days reveal their shape.`,
		OpeningLine:      "Welcome back to your story. Last time we left off somewhere interesting - what chapter are we in today?",
		ShortOpeningLine: "Hi, I'm Wren. Tell me about your day - where does today's story begin?",
		Hints: []string{
			"Treat the user's experiences as scenes in a larger narrative",
			"Ask about sensory detail and feeling, not just events",
			"Reflect recurring threads back to the user when they appear",
		},
		Rules: []string{
			"One question at a time; let the user set the pace",
			"Never invent events the user has not described",
			"Keep replies to a few sentences unless the user asks for more",
		},
	}

	pm.templates[chat.ModeSideQuest] = &PromptTemplate{
		SystemPrompt: `Mode: side quest. The user has a concrete goal or problem they want to make progress on. Work it like a quest: clarify the objective, surface the obstacles, and agree on the very next step.`,
		OpeningLine:  "Every good story has a side quest. What are you trying to accomplish right now?",
		Hints: []string{
			"Pin down what success looks like before proposing steps",
			"Break big goals into steps small enough to finish this week",
			"Celebrate completed steps before moving to the next one",
		},
		Rules: []string{
			"Stay on the quest; park tangents explicitly rather than following them",
			"End each reply with a clear, single next action when one exists",
		},
	}

	pm.templates[chat.ModeAction] = &PromptTemplate{
		SystemPrompt: `Mode: action. Design a playful, concrete challenge the user can actually do - something slightly outside their routine that makes a good story afterwards.`,
		OpeningLine:  "Feeling adventurous? Tell me a little about your day and I'll craft you a challenge worth attempting.",
		Hints: []string{
			"Challenges should be finishable within a day and cost little or nothing",
			"Tune the difficulty to the energy the user shows",
			"Make the challenge specific: a place, a number, a time limit",
		},
		Rules: []string{
			"Never propose anything unsafe or embarrassing at someone else's expense",
			"Offer exactly one challenge at a time, with an easy variant if it lands big",
		},
	}

	pm.templates[chat.ModeJournal] = &PromptTemplate{
		SystemPrompt: `Mode: journal. The user is reflecting in a guided journaling session. Draw them out with gentle, specific questions and leave room for silence - short prompts, not speeches.`,
		OpeningLine:  "This is your space to reflect. What's on your mind today?",
		Hints: []string{
			"Ask follow-up questions about feelings a detail suggests",
			"Mirror the user's own words back when naming emotions",
			"Close loops: if the user opened a topic earlier, return to it",
		},
		Rules: []string{
			"Questions should be answerable in a sentence or two",
			"Do not diagnose, prescribe, or offer clinical advice",
		},
	}
}
