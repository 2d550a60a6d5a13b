package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dvelchev/codeforge/internal/ai"
	"github.com/dvelchev/codeforge/internal/models"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	sessionTitleMax    = 60
)

var ErrEmptyMessage = errors.New("message content must not be empty")

// FileGetter is the slice of the file store the chat service reads.
type FileGetter interface {
	GetMany(ctx context.Context, projectID uuid.UUID, fileIDs []uuid.UUID) ([]*models.ProjectFile, error)
}

// TokenCharger books generated tokens against the user's allowance.
type TokenCharger interface {
	IncrementTokensUsed(ctx context.Context, userID uuid.UUID, amount int64) error
}

type SendParams struct {
	Content        string
	FileReferences []uuid.UUID
	Model          string
}

type Service struct {
	store Store
	files FileGetter
	ai    ai.Client
	users TokenCharger
}

func NewService(store Store, files FileGetter, aiClient ai.Client, users TokenCharger) *Service {
	return &Service{
		store: store,
		files: files,
		ai:    aiClient,
		users: users,
	}
}

func (s *Service) ListSessions(ctx context.Context, projectID uuid.UUID) ([]*models.ChatSession, error) {
	return s.store.ListSessions(ctx, projectID)
}

func (s *Service) CreateSession(ctx context.Context, projectID, userID uuid.UUID, title *string) (*models.ChatSession, error) {
	session := &models.ChatSession{
		ProjectID: projectID,
		UserID:    userID,
		Title:     title,
		IsActive:  true,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, projectID, sessionID uuid.UUID) (*models.ChatSession, error) {
	return s.store.GetSession(ctx, projectID, sessionID)
}

func (s *Service) DeleteSession(ctx context.Context, projectID, sessionID uuid.UUID) error {
	return s.store.DeleteSession(ctx, projectID, sessionID)
}

func (s *Service) ListMessages(ctx context.Context, projectID, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	if _, err := s.store.GetSession(ctx, projectID, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}

// SendMessage runs one blocking chat turn: persist the user message,
// assemble the prompt, call the model, persist and return the reply.
func (s *Service) SendMessage(ctx context.Context, project *models.Project, sessionID uuid.UUID, params SendParams) (*models.ChatMessage, error) {
	req, userMsg, err := s.prepareTurn(ctx, project, sessionID, params)
	if err != nil {
		return nil, err
	}

	reply, usage, err := s.ai.Generate(ctx, *req)
	if err != nil {
		return nil, err
	}
	return s.finishTurn(ctx, project, sessionID, userMsg, params.Model, reply, usage)
}

// StreamMessage runs a chat turn pushing chunks through onDelta as
// they arrive. The assistant message is only persisted when the stream
// finishes cleanly.
func (s *Service) StreamMessage(ctx context.Context, project *models.Project, sessionID uuid.UUID, params SendParams, onDelta func(chunk string) error) (*models.ChatMessage, error) {
	req, userMsg, err := s.prepareTurn(ctx, project, sessionID, params)
	if err != nil {
		return nil, err
	}

	reply, usage, err := s.ai.Stream(ctx, *req, onDelta)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Int("partial_bytes", len(reply)).
			Msg("chat stream aborted")
		return nil, err
	}
	return s.finishTurn(ctx, project, sessionID, userMsg, params.Model, reply, usage)
}

func (s *Service) prepareTurn(ctx context.Context, project *models.Project, sessionID uuid.UUID, params SendParams) (*ai.Request, *models.ChatMessage, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, nil, ErrEmptyMessage
	}

	session, err := s.store.GetSession(ctx, project.ID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	userMsg := &models.ChatMessage{
		SessionID:      sessionID,
		Role:           models.MessageRoleUser,
		Content:        content,
		FileReferences: params.FileReferences,
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, nil, err
	}

	if session.Title == nil {
		if err := s.store.SetSessionTitle(ctx, sessionID, truncateTitle(content)); err != nil {
			return nil, nil, err
		}
	}

	history, err := s.store.RecentMessages(ctx, sessionID, historyLimit, userMsg.ID)
	if err != nil {
		return nil, nil, err
	}

	fileContext := ""
	if len(params.FileReferences) > 0 {
		refs := params.FileReferences
		if len(refs) > maxContextFiles {
			refs = refs[:maxContextFiles]
		}
		attached, err := s.files.GetMany(ctx, project.ID, refs)
		if err != nil {
			return nil, nil, err
		}
		fileContext = BuildFileContext(attached)
	}

	req := &ai.Request{
		Model:       params.Model,
		System:      BuildSystemPrompt(project, fileContext),
		Messages:    BuildHistory(history, content),
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	return req, userMsg, nil
}

// truncateTitle limits a title to sessionTitleMax characters, counting
// runes so multibyte content is never split mid-sequence.
func truncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= sessionTitleMax {
		return content
	}
	return string(runes[:sessionTitleMax])
}

func (s *Service) finishTurn(ctx context.Context, project *models.Project, sessionID uuid.UUID, userMsg *models.ChatMessage, model, reply string, usage *ai.Usage) (*models.ChatMessage, error) {
	assistantMsg := &models.ChatMessage{
		SessionID:  sessionID,
		Role:       models.MessageRoleAssistant,
		Content:    reply,
		CodeBlocks: ExtractCodeBlocks(reply),
	}
	if model != "" {
		assistantMsg.ModelUsed = &model
	}
	if usage != nil {
		assistantMsg.InputTokens = usage.InputTokens
		assistantMsg.OutputTokens = usage.OutputTokens
	}

	if err := s.store.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	if err := s.store.TouchSession(ctx, sessionID); err != nil {
		return nil, err
	}

	if usage != nil {
		total := int64(usage.InputTokens + usage.OutputTokens)
		if err := s.users.IncrementTokensUsed(ctx, project.OwnerID, total); err != nil {
			return nil, err
		}
	}
	return assistantMsg, nil
}

// AssistKind selects one of the standalone code-assistant operations.
type AssistKind string

const (
	AssistGenerate AssistKind = "generate"
	AssistExplain  AssistKind = "explain"
	AssistFix      AssistKind = "fix"
	AssistImprove  AssistKind = "improve"
)

type AssistParams struct {
	Kind         AssistKind
	Prompt       string
	Language     string
	ErrorMessage string
	Model        string
	ProjectID    *uuid.UUID
}

type AssistResult struct {
	Content    string             `json:"content"`
	CodeBlocks []models.CodeBlock `json:"code_blocks,omitempty"`
	ModelUsed  string             `json:"model_used"`
}

// Assist runs one of the code-assistant operations and records an
// audit row.
func (s *Service) Assist(ctx context.Context, userID uuid.UUID, params AssistParams) (*AssistResult, error) {
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return nil, ErrEmptyMessage
	}

	system, userContent := assistPrompt(params, prompt)

	req := ai.Request{
		Model:       params.Model,
		System:      system,
		Messages:    []ai.Message{{Role: "user", Content: userContent}},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	reply, usage, err := s.ai.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	generation := &models.CodeGeneration{
		UserID:    userID,
		ProjectID: params.ProjectID,
		Kind:      string(params.Kind),
		Prompt:    prompt,
		Generated: reply,
		ModelUsed: params.Model,
	}
	if params.Language != "" {
		lang := params.Language
		generation.Language = &lang
	}
	if usage != nil {
		generation.InputTokens = usage.InputTokens
		generation.OutputTokens = usage.OutputTokens
		total := int64(usage.InputTokens + usage.OutputTokens)
		if err := s.users.IncrementTokensUsed(ctx, userID, total); err != nil {
			return nil, err
		}
	}
	if err := s.store.CreateGeneration(ctx, generation); err != nil {
		return nil, err
	}

	return &AssistResult{
		Content:    reply,
		CodeBlocks: ExtractCodeBlocks(reply),
		ModelUsed:  params.Model,
	}, nil
}

func assistPrompt(params AssistParams, prompt string) (system, user string) {
	language := params.Language
	if language == "" {
		language = "the most appropriate language"
	}

	switch params.Kind {
	case AssistExplain:
		return "You are a patient senior engineer. Explain what the given code does, walking through the important parts step by step.",
			fmt.Sprintf("Explain this code:\n```%s\n%s\n```", params.Language, prompt)
	case AssistFix:
		user = fmt.Sprintf("Fix this code:\n```%s\n%s\n```", params.Language, prompt)
		if params.ErrorMessage != "" {
			user += fmt.Sprintf("\nIt fails with:\n```\n%s\n```", params.ErrorMessage)
		}
		return "You are a debugging expert. Identify the bug, explain the root cause briefly, then return the corrected code in a fenced code block.", user
	case AssistImprove:
		return "You are a code reviewer. Improve the given code's readability, performance, and robustness without changing its behavior. Return the improved code in a fenced code block and list the changes.",
			fmt.Sprintf("Improve this code:\n```%s\n%s\n```", params.Language, prompt)
	default:
		return fmt.Sprintf("You are an expert %s developer. Generate clean, idiomatic, production-quality code for the user's request. Return the code in a fenced code block tagged with the language.", language),
			prompt
	}
}
