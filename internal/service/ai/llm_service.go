package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/fernwake/questlog/backend/internal/config"
	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// historyLimit bounds how many prior turns are replayed to the model.
const historyLimit = 10

// ReplyRequest carries everything needed to generate one assistant turn.
type ReplyRequest struct {
	Mode          chat.Mode
	History       []chat.Message // prior turns, oldest first, excluding the new user text
	UserText      string
	Brevity       string
	JournalPrompt *chat.JournalPrompt
}

// Generator is the language-model contract consumed by the exchange and
// summary services. Tests substitute a stub.
type Generator interface {
	// Reply produces the next assistant turn for a conversation.
	Reply(ctx context.Context, req ReplyRequest) (string, error)
	// Complete runs a single system+user prompt outside any conversation,
	// used for titles, summaries and journal-prompt generation.
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service encapsulates AI-powered conversation functionality.
type Service struct {
	chatModel model.ChatModel
	prompts   *ModePromptManager
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the model and compiles the conversation chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		prompts:   NewModePromptManager(),
		chain:     runnable,
	}, nil
}

// Prompts exposes the mode templates for opening messages.
func (s *Service) Prompts() *ModePromptManager {
	return s.prompts
}

// Reply generates the assistant's next turn.
func (s *Service) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	system := s.prompts.BuildSystemPrompt(req.Mode, req.JournalPrompt)
	if req.Brevity == "short" {
		system += "\n\nThe user asked for brevity. Keep this reply to two sentences at most."
	}

	input := map[string]any{
		"system":  system,
		"history": buildHistoryMessages(req.History),
		"query":   req.UserText,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated reply for mode=%s, length=%d", req.Mode, len(response.Content))
	return response.Content, nil
}

// Complete runs a standalone prompt against the model.
func (s *Service) Complete(ctx context.Context, system, user string) (string, error) {
	response, err := s.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run completion: %w", err)
	}
	return response.Content, nil
}

// buildHistoryMessages maps the trailing window of conversation history into
// model messages. JSON-wrapped user content contributes its inner text only.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.DisplayText()))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
