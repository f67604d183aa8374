// Package gallery holds the user/photo listing endpoints that consume
// the auth guard. It is deliberately thin; the interesting behavior
// lives in who may call what.
package gallery

import "time"

// Photo is a single uploaded image owned by a user.
type Photo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a remark left on a photo by an authenticated user.
type Comment struct {
	ID        string    `json:"id"`
	PhotoID   string    `json:"photo_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
