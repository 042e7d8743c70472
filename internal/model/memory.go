package model

import "time"

// MemoryEntry is one remembered past decision, injected into future
// classification prompts for the same domain so the classifier stays
// consistent with its own precedent.
type MemoryEntry struct {
	CreatedAt time.Time `json:"timestamp"`
	Domain    Domain    `json:"domain"`
	Label     string    `json:"decision"`
	Reasoning string    `json:"reasoning"`
}
