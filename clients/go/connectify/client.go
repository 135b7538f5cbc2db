// Package connectify provides a client for the Connectify discussion rooms
// service.
package connectify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a Connectify API client acting as a single platform user.
type Client struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
}

// NewClient creates a new client for the given user.
func NewClient(baseURL, userID string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request with the user identity header attached.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Connectify-User", c.UserID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("connectify error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// Room represents room metadata.
type Room struct {
	ID           string `json:"id"`
	CourseRef    string `json:"course_ref,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CourseScoped bool   `json:"course_scoped"`
}

// RoomSummary is one entry in the caller's room listing.
type RoomSummary struct {
	Room               Room   `json:"room"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
	LastActivityAt     string `json:"last_activity_at"`
	UnreadCount        int64  `json:"unread_count"`
}

// Message represents a chat message.
type Message struct {
	ID         string `json:"id"`
	RoomID     string `json:"room_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"senderName,omitempty"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"ts"`
	Seq        int64  `json:"seq"`
}

// RoomsResponse is the response from listing rooms.
type RoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// ListRooms lists the user's rooms, most recently active first.
func (c *Client) ListRooms(ctx context.Context) (*RoomsResponse, error) {
	respBody, err := c.doRequest(ctx, "GET", "/api/rooms", nil)
	if err != nil {
		return nil, err
	}

	var resp RoomsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MessagesResponse is the response from getting room messages.
type MessagesResponse struct {
	Room     Room      `json:"room"`
	Messages []Message `json:"messages"`
}

// GetMessages retrieves messages from a room. The identifier may be a room
// id or a course id; an unknown identifier provisions a room server-side.
func (c *Client) GetMessages(ctx context.Context, identifier string, limit int, before int64) (*MessagesResponse, error) {
	path := fmt.Sprintf("/api/rooms/%s/messages?limit=%d", identifier, limit)
	if before > 0 {
		path += fmt.Sprintf("&before=%d", before)
	}

	respBody, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendRequest is the request body for sending a message.
type SendRequest struct {
	Content  string `json:"content"`
	ClientID string `json:"clientId,omitempty"`
}

// SendResponse is the response from sending a message.
type SendResponse struct {
	RoomID   string   `json:"roomId"`
	Message  *Message `json:"message"`
	ClientID string   `json:"clientId,omitempty"`
}

// SendMessage sends a message to the room addressed by identifier. clientID
// is an optional client-generated tag echoed back in the response.
func (c *Client) SendMessage(ctx context.Context, identifier, content, clientID string) (*SendResponse, error) {
	reqBody, _ := json.Marshal(SendRequest{Content: content, ClientID: clientID})

	respBody, err := c.doRequest(ctx, "POST", "/api/rooms/"+identifier+"/messages", reqBody)
	if err != nil {
		return nil, err
	}

	var resp SendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead marks the room as read up to its current tail. Returns how many
// messages were newly covered.
func (c *Client) MarkRead(ctx context.Context, identifier string) (int64, error) {
	respBody, err := c.doRequest(ctx, "POST", "/api/rooms/"+identifier+"/read", []byte("{}"))
	if err != nil {
		return 0, err
	}

	var resp struct {
		Marked int64 `json:"marked"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, err
	}
	return resp.Marked, nil
}

// Typing signals that the user is typing in the room.
func (c *Client) Typing(ctx context.Context, identifier string) error {
	_, err := c.doRequest(ctx, "POST", "/api/rooms/"+identifier+"/typing", []byte("{}"))
	return err
}

// UserProfile represents a user's directory profile.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// GetUser gets a user's profile.
func (c *Client) GetUser(ctx context.Context, userID string) (*UserProfile, error) {
	respBody, err := c.doRequest(ctx, "GET", "/api/users/"+userID, nil)
	if err != nil {
		return nil, err
	}

	var resp UserProfile
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	respBody, err := c.doRequest(ctx, "GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
