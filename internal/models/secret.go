package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a stored secret. UNREAD is the only
// non-terminal state; a record never returns to UNREAD once it has left it.
type Status string

const (
	StatusUnread          Status = "UNREAD"
	StatusRead            Status = "READ"
	StatusTooManyAttempts Status = "TOO_MANY_PASSPHRASE_ATTEMPTS"
	StatusDeleted         Status = "DELETED"
)

// ParseStatus maps a stored status string back to the closed enum. An
// unknown value means the record was not written by this service and is
// treated as store corruption, not defaulted.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnread, StatusRead, StatusTooManyAttempts, StatusDeleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown secret status %q", s)
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusUnread
}

// PayloadType tags the two payload variants.
type PayloadType string

const (
	PayloadText PayloadType = "text"
	PayloadFile PayloadType = "file"
)

// Payload is the plaintext a creator hands over: a piece of text or a named
// file. Name is meaningful only for file payloads.
type Payload struct {
	Type PayloadType
	Name string
	Data []byte
}

type payloadJSON struct {
	Type PayloadType `json:"type"`
	Name string      `json:"name,omitempty"`
	Data []byte      `json:"data"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PayloadText:
		return json.Marshal(payloadJSON{Type: PayloadText, Data: p.Data})
	case PayloadFile:
		return json.Marshal(payloadJSON{Type: PayloadFile, Name: p.Name, Data: p.Data})
	default:
		return nil, fmt.Errorf("unknown payload type %q", p.Type)
	}
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw payloadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case PayloadText:
		*p = Payload{Type: PayloadText, Data: raw.Data}
	case PayloadFile:
		*p = Payload{Type: PayloadFile, Name: raw.Name, Data: raw.Data}
	default:
		return fmt.Errorf("unknown payload type %q", raw.Type)
	}
	return nil
}

// PassphraseProof is the stored verifier for an optional creator-chosen
// passphrase. Present only while the record is UNREAD.
type PassphraseProof struct {
	Hash     string
	Attempts int
}

// Record is the persisted entity, keyed by secret id. Envelope and Proof
// exist iff Status == UNREAD; every transition away from UNREAD scrubs both
// in the same atomic step. Metadata stays readable until the whole record
// expires out of the store.
type Record struct {
	Envelope      string
	Proof         *PassphraseProof
	Status        Status
	ExpiresAt     time.Time
	HasPassphrase bool
}

// Metadata is the credential-free view of a record.
type Metadata struct {
	Status        Status    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	HasPassphrase bool      `json:"has_passphrase"`
}

// Meta projects the metadata view from a full record.
func (r *Record) Meta() Metadata {
	return Metadata{
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
		HasPassphrase: r.HasPassphrase,
	}
}
