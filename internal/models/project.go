package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
	ProjectDeleted  ProjectStatus = "deleted"
)

type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID          uuid.UUID     `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	OwnerID     uuid.UUID     `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Owner       *User         `bun:"rel:belongs-to,join:owner_id=id,on_delete:CASCADE" json:"-"`
	Name        string        `bun:"name,notnull" json:"name"`
	Description *string       `bun:"description" json:"description,omitempty"`
	Language    string        `bun:"language,notnull,default:'python'" json:"language"`
	Framework   *string       `bun:"framework" json:"framework,omitempty"`
	Status      ProjectStatus `bun:"status,notnull,default:'active'" json:"status"`
	IsPublic    bool          `bun:"is_public,notnull,default:false" json:"is_public"`

	// Denormalized usage counters, maintained by the file store under a
	// row lock so quota checks stay consistent under concurrent writes.
	FileCount   int `bun:"file_count,notnull,default:0" json:"file_count"`
	TotalSizeKB int `bun:"total_size_kb,notnull,default:0" json:"total_size_kb"`

	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	LastAccessedAt *time.Time `bun:"last_accessed_at" json:"last_accessed_at,omitempty"`
}

type FileType string

const (
	FileTypeFile      FileType = "file"
	FileTypeDirectory FileType = "directory"
)

type ProjectFile struct {
	bun.BaseModel `bun:"table:project_files,alias:pf"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID  `bun:"project_id,notnull,type:uuid,unique:project_path" json:"project_id"`
	Project   *Project   `bun:"rel:belongs-to,join:project_id=id,on_delete:CASCADE" json:"-"`
	ParentID  *uuid.UUID `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`

	Name     string   `bun:"name,notnull" json:"name"`
	Path     string   `bun:"path,notnull,unique:project_path" json:"path"`
	Type     FileType `bun:"type,notnull,default:'file'" json:"type"`
	Content  *string  `bun:"content" json:"content,omitempty"`
	Language *string  `bun:"language" json:"language,omitempty"`
	MimeType *string  `bun:"mime_type" json:"mime_type,omitempty"`

	SizeBytes int  `bun:"size_bytes,notnull,default:0" json:"size_bytes"`
	IsBinary  bool `bun:"is_binary,notnull,default:false" json:"is_binary"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
