// Package store persists conversation documents. The bolt-backed store is
// what the CLI uses; the memory store backs tests and one-shot runs that
// never touch disk.
package store

import (
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/conversation"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ChatInfo is the listing summary kept alongside each conversation so that
// List never has to decode full documents.
type ChatInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store is the persistence boundary for conversations. Put replaces the
// stored document atomically; Get returns a detached copy the caller may
// mutate freely.
type Store interface {
	List() ([]ChatInfo, error)
	Get(id string) (*conversation.Conversation, error)
	Put(c *conversation.Conversation) error
	Delete(id string) error
	Close() error
}

func infoFor(c *conversation.Conversation) ChatInfo {
	return ChatInfo{
		ID:           c.ID,
		Title:        c.Title,
		MessageCount: len(c.Flatten()),
		UpdatedAt:    c.UpdatedAt,
	}
}
