package models

import "time"

// Story is the root of a narrative graph. A story exclusively owns its
// segments and edges; deleting a story cascades to both.
type Story struct {
	ID            string    `json:"id" badgerhold:"key"`
	OwnerID       string    `json:"owner_id" badgerhold:"index"`
	Title         string    `json:"title"`
	InitialPrompt string    `json:"initial_prompt"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
