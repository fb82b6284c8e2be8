package models

import "time"

// Credentials is the single Bluesky identifier/app-password row. Replaced
// wholesale, never partially updated.
type Credentials struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// OperatorCredentials guards the HTTP API. Password holds a bcrypt hash.
type OperatorCredentials struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredImage is an uploaded image blob addressed by its generated name.
type StoredImage struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"-"`
}
