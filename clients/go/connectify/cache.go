package connectify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// LocalStatus is the lifecycle state of a locally authored message.
type LocalStatus string

const (
	StatusDraft     LocalStatus = "draft"
	StatusSending   LocalStatus = "sending"
	StatusConfirmed LocalStatus = "confirmed"
	// StatusLocalOnly marks a message whose send failed. It stays visible
	// and durable until a retry confirms it.
	StatusLocalOnly LocalStatus = "local_only"
)

// ResolutionState is the client's knowledge of an identifier's room.
type ResolutionState string

const (
	ResolutionUnresolved ResolutionState = "unresolved"
	ResolutionResolving  ResolutionState = "resolving"
	ResolutionResolved   ResolutionState = "resolved"
)

// LocalMessage is a message authored on this client, tracked through its
// send lifecycle. ClientID is generated locally and survives restarts, so a
// confirmed send can be matched back to its local copy.
type LocalMessage struct {
	ClientID   string      `json:"clientId"`
	Identifier string      `json:"identifier"`
	Content    string      `json:"content"`
	Status     LocalStatus `json:"status"`
	CreatedAt  int64       `json:"createdAt"` // Unix ms, local clock
	ServerID   string      `json:"serverId,omitempty"`
	Attempts   int         `json:"attempts"`
	LastError  string      `json:"lastError,omitempty"`
}

// roomCache is everything the client remembers about one identifier.
type roomCache struct {
	Resolution ResolutionState `json:"resolution"`
	RoomID     string          `json:"roomId,omitempty"`
	RoomName   string          `json:"roomName,omitempty"`
	Messages   []Message       `json:"messages,omitempty"`
	Locals     []LocalMessage  `json:"locals,omitempty"`
}

type cacheState struct {
	Rooms map[string]*roomCache `json:"rooms"`
}

// Cache is the client's durable store of messages and room resolutions,
// persisted as JSON under a config directory. It lets the client render
// conversations and keep authored messages when the service is unreachable.
type Cache struct {
	dir string

	mu    sync.Mutex
	state cacheState
}

// NewCache opens the cache rooted at dir, loading existing state if present.
// Empty dir defaults to ~/.connectify.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		if env := os.Getenv("CONNECTIFY_CONFIG"); env != "" {
			dir = env
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(home, ".connectify")
		}
	}

	c := &Cache{
		dir:   dir,
		state: cacheState{Rooms: make(map[string]*roomCache)},
	}

	data, err := os.ReadFile(c.path())
	if err == nil {
		var state cacheState
		if json.Unmarshal(data, &state) == nil && state.Rooms != nil {
			c.state = state
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return c, nil
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, "cache.json")
}

// save writes the state atomically. Caller holds c.mu.
func (c *Cache) save() error {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path())
}

func (c *Cache) room(identifier string) *roomCache {
	rc, ok := c.state.Rooms[identifier]
	if !ok {
		rc = &roomCache{Resolution: ResolutionUnresolved}
		c.state.Rooms[identifier] = rc
	}
	return rc
}

// newClientID generates a random id for a local message.
func newClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "local-" + hex.EncodeToString(b)
}

// CachedMessage is a unified view entry: either a server-confirmed message
// or a local one still working through its lifecycle.
type CachedMessage struct {
	Message
	ClientID string      `json:"clientId,omitempty"`
	Local    bool        `json:"local"`
	Status   LocalStatus `json:"status,omitempty"`
}

// CachedClient wraps a Client with the durable cache, giving the caller a
// view that degrades to local state when the service is unreachable instead
// of failing.
type CachedClient struct {
	client *Client
	cache  *Cache
}

// NewCachedClient pairs a client with its cache.
func NewCachedClient(client *Client, cache *Cache) *CachedClient {
	return &CachedClient{client: client, cache: cache}
}

// Resolution reports what the cache knows about an identifier's room.
func (cc *CachedClient) Resolution(identifier string) (ResolutionState, string) {
	cc.cache.mu.Lock()
	defer cc.cache.mu.Unlock()
	rc := cc.cache.room(identifier)
	return rc.Resolution, rc.RoomID
}

// Messages fetches the room's messages, falling back to the cached copy
// when the service is unreachable. Local messages not yet confirmed are
// appended after the server log in authoring order.
func (cc *CachedClient) Messages(ctx context.Context, identifier string, limit int) ([]CachedMessage, error) {
	cc.cache.mu.Lock()
	rc := cc.cache.room(identifier)
	if rc.Resolution == ResolutionUnresolved {
		rc.Resolution = ResolutionResolving
	}
	cc.cache.mu.Unlock()

	resp, err := cc.client.GetMessages(ctx, identifier, limit, 0)

	cc.cache.mu.Lock()
	defer cc.cache.mu.Unlock()
	rc = cc.cache.room(identifier)

	if err != nil {
		// Service unreachable: serve what we have. Resolution stays where it
		// was; a cached room id is still trustworthy.
		if rc.RoomID == "" {
			rc.Resolution = ResolutionUnresolved
		}
		cc.cache.save()
		return cc.view(rc), nil
	}

	rc.Resolution = ResolutionResolved
	rc.RoomID = resp.Room.ID
	rc.RoomName = resp.Room.Name
	rc.Messages = resp.Messages
	cc.pruneConfirmed(rc)
	if err := cc.cache.save(); err != nil {
		return nil, err
	}
	return cc.view(rc), nil
}

// Send sends a message, tracking it through draft, sending and confirmed.
// On failure the message is kept durably as local-only rather than lost,
// and the error is returned so the caller can surface it.
func (cc *CachedClient) Send(ctx context.Context, identifier, content string) (*CachedMessage, error) {
	local := LocalMessage{
		ClientID:   newClientID(),
		Identifier: identifier,
		Content:    content,
		Status:     StatusDraft,
		CreatedAt:  time.Now().UnixMilli(),
	}

	cc.cache.mu.Lock()
	rc := cc.cache.room(identifier)
	local.Status = StatusSending
	local.Attempts = 1
	rc.Locals = append(rc.Locals, local)
	cc.cache.save()
	cc.cache.mu.Unlock()

	resp, err := cc.client.SendMessage(ctx, identifier, content, local.ClientID)

	cc.cache.mu.Lock()
	defer cc.cache.mu.Unlock()
	rc = cc.cache.room(identifier)
	stored := cc.findLocal(rc, local.ClientID)

	if err != nil {
		stored.Status = StatusLocalOnly
		stored.LastError = err.Error()
		cc.cache.save()
		return cc.localView(stored), err
	}

	stored.Status = StatusConfirmed
	stored.ServerID = resp.Message.ID
	rc.Resolution = ResolutionResolved
	rc.RoomID = resp.RoomID
	rc.Messages = append(rc.Messages, *resp.Message)
	cc.pruneConfirmed(rc)
	if err := cc.cache.save(); err != nil {
		return nil, err
	}
	return &CachedMessage{Message: *resp.Message, ClientID: local.ClientID, Status: StatusConfirmed}, nil
}

// Retry resends every local-only message, oldest first. It returns how many
// were confirmed; messages that fail again simply stay local-only.
func (cc *CachedClient) Retry(ctx context.Context) (int, error) {
	cc.cache.mu.Lock()
	type pending struct {
		identifier string
		clientID   string
		content    string
		createdAt  int64
	}
	var queue []pending
	for identifier, rc := range cc.cache.state.Rooms {
		for _, l := range rc.Locals {
			if l.Status == StatusLocalOnly {
				queue = append(queue, pending{identifier, l.ClientID, l.Content, l.CreatedAt})
			}
		}
	}
	cc.cache.mu.Unlock()

	sort.Slice(queue, func(i, j int) bool { return queue[i].createdAt < queue[j].createdAt })

	confirmed := 0
	for _, p := range queue {
		resp, err := cc.client.SendMessage(ctx, p.identifier, p.content, p.clientID)

		cc.cache.mu.Lock()
		rc := cc.cache.room(p.identifier)
		stored := cc.findLocal(rc, p.clientID)
		if stored == nil {
			cc.cache.mu.Unlock()
			continue
		}
		if err != nil {
			stored.Attempts++
			stored.LastError = err.Error()
			cc.cache.save()
			cc.cache.mu.Unlock()
			continue
		}
		stored.Status = StatusConfirmed
		stored.ServerID = resp.Message.ID
		rc.Resolution = ResolutionResolved
		rc.RoomID = resp.RoomID
		rc.Messages = append(rc.Messages, *resp.Message)
		cc.pruneConfirmed(rc)
		cc.cache.save()
		cc.cache.mu.Unlock()
		confirmed++
	}
	return confirmed, nil
}

// PendingCount returns how many messages across all rooms are still
// local-only.
func (cc *CachedClient) PendingCount() int {
	cc.cache.mu.Lock()
	defer cc.cache.mu.Unlock()
	n := 0
	for _, rc := range cc.cache.state.Rooms {
		for _, l := range rc.Locals {
			if l.Status == StatusLocalOnly {
				n++
			}
		}
	}
	return n
}

// findLocal returns the local message with the given client id, or nil.
// Caller holds the cache mutex.
func (cc *CachedClient) findLocal(rc *roomCache, clientID string) *LocalMessage {
	for i := range rc.Locals {
		if rc.Locals[i].ClientID == clientID {
			return &rc.Locals[i]
		}
	}
	return nil
}

// pruneConfirmed drops local copies whose server message is now present in
// the cached log. Caller holds the cache mutex.
func (cc *CachedClient) pruneConfirmed(rc *roomCache) {
	present := make(map[string]bool, len(rc.Messages))
	for _, m := range rc.Messages {
		present[m.ID] = true
	}
	kept := rc.Locals[:0]
	for _, l := range rc.Locals {
		if l.Status == StatusConfirmed && present[l.ServerID] {
			continue
		}
		kept = append(kept, l)
	}
	rc.Locals = kept
}

// view renders the cached log followed by unconfirmed locals. Caller holds
// the cache mutex.
func (cc *CachedClient) view(rc *roomCache) []CachedMessage {
	out := make([]CachedMessage, 0, len(rc.Messages)+len(rc.Locals))
	for _, m := range rc.Messages {
		out = append(out, CachedMessage{Message: m})
	}
	for i := range rc.Locals {
		l := &rc.Locals[i]
		if l.Status == StatusConfirmed {
			continue
		}
		out = append(out, *cc.localView(l))
	}
	return out
}

func (cc *CachedClient) localView(l *LocalMessage) *CachedMessage {
	return &CachedMessage{
		Message: Message{
			SenderID:  cc.client.UserID,
			Content:   l.Content,
			Timestamp: l.CreatedAt,
		},
		ClientID: l.ClientID,
		Local:    true,
		Status:   l.Status,
	}
}
