package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type ChatSession struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `bun:"project_id,notnull,type:uuid" json:"project_id"`
	Project   *Project  `bun:"rel:belongs-to,join:project_id=id,on_delete:CASCADE" json:"-"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Title     *string   `bun:"title" json:"title,omitempty"`
	IsActive  bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// CodeBlock is one fenced code block extracted from an assistant reply.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:cm"`

	ID        uuid.UUID    `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	SessionID uuid.UUID    `bun:"session_id,notnull,type:uuid" json:"session_id"`
	Session   *ChatSession `bun:"rel:belongs-to,join:session_id=id,on_delete:CASCADE" json:"-"`
	Role      MessageRole  `bun:"role,notnull" json:"role"`
	Content   string       `bun:"content,notnull" json:"content"`

	FileReferences []uuid.UUID `bun:"file_references,type:jsonb" json:"file_references,omitempty"`
	CodeBlocks     []CodeBlock `bun:"code_blocks,type:jsonb" json:"code_blocks,omitempty"`

	ModelUsed    *string `bun:"model_used" json:"model_used,omitempty"`
	InputTokens  int     `bun:"input_tokens,notnull,default:0" json:"input_tokens"`
	OutputTokens int     `bun:"output_tokens,notnull,default:0" json:"output_tokens"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// CodeGeneration is an audit row for the standalone code-assistant
// endpoints (generate, explain, fix, improve).
type CodeGeneration struct {
	bun.BaseModel `bun:"table:code_generations,alias:cg"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ProjectID *uuid.UUID `bun:"project_id,type:uuid" json:"project_id,omitempty"`

	Kind      string  `bun:"kind,notnull" json:"kind"`
	Prompt    string  `bun:"prompt,notnull" json:"prompt"`
	Language  *string `bun:"language" json:"language,omitempty"`
	Generated string  `bun:"generated,notnull" json:"generated"`

	ModelUsed    string `bun:"model_used,notnull" json:"model_used"`
	InputTokens  int    `bun:"input_tokens,notnull,default:0" json:"input_tokens"`
	OutputTokens int    `bun:"output_tokens,notnull,default:0" json:"output_tokens"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
