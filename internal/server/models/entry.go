package models

import "time"

// VoiceEntry is a journal entry owned by exactly one user. AudioOID refers
// to a PostgreSQL large object holding the recording; 0 means no audio is
// attached. Once set to a real OID it never changes until the entry is
// deleted, at which point the object is removed with it.
type VoiceEntry struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	AudioOID      uint32    `json:"audioOid"`
	Transcription string    `json:"transcription"`
	CreatedAt     time.Time `json:"createdAt"`
}
