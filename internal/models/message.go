package models

// Message is one entry in a room's append-only log. The ID is a ULID, so it
// sorts with the creation timestamp; Seq is the store's insert sequence and
// breaks timestamp ties.
type Message struct {
	ID        string `json:"id"` // ULID
	RoomID    string `json:"room_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"ts"` // Unix ms, server-assigned
	Seq       int64  `json:"seq"`
}

// ReadReceipt records that a user has seen a message.
type ReadReceipt struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	ReadAt    int64  `json:"read_at"` // Unix ms
}
