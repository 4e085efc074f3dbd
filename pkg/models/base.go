// Package models defines the Store-backed entities of the platform:
// Project, Agent, Task, Conversation, Message, Training, Evaluation,
// EvaluationRun, MCPGateway, MCPTool, and FolderUpload.
package models

import "time"

// Base fields every Store-backed record carries.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch stamps UpdatedAt; called by Store.Update before a patch is persisted.
func (b *Base) Touch(now time.Time) {
	b.UpdatedAt = now
}

// The following methods satisfy store.Document so every *T embedding Base
// can be passed directly to Store without a wrapper type.

func (b *Base) GetID() string             { return b.ID }
func (b *Base) SetID(id string)           { b.ID = id }
func (b *Base) GetCreatedAt() time.Time   { return b.CreatedAt }
func (b *Base) SetCreatedAt(t time.Time)  { b.CreatedAt = t }
func (b *Base) GetUpdatedAt() time.Time   { return b.UpdatedAt }
func (b *Base) SetUpdatedAt(t time.Time)  { b.UpdatedAt = t }
