package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AIModel is one entry of the model registry: a generation model the
// chat and code-assistant endpoints may be pointed at.
type AIModel struct {
	bun.BaseModel `bun:"table:ai_models,alias:am"`

	ID       uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	ModelID  string    `bun:"model_id,notnull,unique" json:"model_id"`
	Name     string    `bun:"name,notnull" json:"name"`
	Provider string    `bun:"provider,notnull,default:'google'" json:"provider"`

	Description   *string `bun:"description" json:"description,omitempty"`
	ContextWindow int     `bun:"context_window,notnull,default:0" json:"context_window"`
	MaxOutput     int     `bun:"max_output,notnull,default:0" json:"max_output"`

	IsActive     bool `bun:"is_active,notnull,default:true" json:"is_active"`
	IsDefault    bool `bun:"is_default,notnull,default:false" json:"is_default"`
	IsDeprecated bool `bun:"is_deprecated,notnull,default:false" json:"is_deprecated"`
	ProOnly      bool `bun:"pro_only,notnull,default:false" json:"pro_only"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
