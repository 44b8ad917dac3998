package server

import (
	"sync"
)

const presenceShards = 16

// PresenceRegistry tracks which connections each user currently holds.
// Entries are partitioned into shards keyed by user id so connect and
// disconnect churn for unrelated users never contends on one lock.
type PresenceRegistry struct {
	shards [presenceShards]presenceShard
}

type presenceShard struct {
	mu    sync.RWMutex
	users map[int]map[*Client]struct{}
}

func NewPresenceRegistry() *PresenceRegistry {
	pr := &PresenceRegistry{}
	for i := range pr.shards {
		pr.shards[i].users = make(map[int]map[*Client]struct{})
	}
	return pr
}

func (pr *PresenceRegistry) shard(userId int) *presenceShard {
	return &pr.shards[userId%presenceShards]
}

// Register adds a connection to the user's set and reports whether the
// user transitioned from offline to online.
func (pr *PresenceRegistry) Register(userId int, c *Client) bool {
	s := pr.shard(userId)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userId]
	if !ok {
		conns = make(map[*Client]struct{})
		s.users[userId] = conns
	}
	conns[c] = struct{}{}

	return !ok
}

// Unregister removes a connection from the user's set and reports whether
// the user transitioned from online to offline. Removing an absent
// connection is a no-op.
func (pr *PresenceRegistry) Unregister(userId int, c *Client) bool {
	s := pr.shard(userId)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userId]
	if !ok {
		return false
	}

	if _, ok := conns[c]; !ok {
		return false
	}

	delete(conns, c)
	if len(conns) == 0 {
		delete(s.users, userId)
		return true
	}

	return false
}

func (pr *PresenceRegistry) IsOnline(userId int) bool {
	s := pr.shard(userId)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users[userId]) > 0
}

// OnlineUsers returns the ids of every user with at least one live
// connection; used to seed newly connecting clients.
func (pr *PresenceRegistry) OnlineUsers() []int {
	var users []int
	for i := range pr.shards {
		s := &pr.shards[i]
		s.mu.RLock()
		for id := range s.users {
			users = append(users, id)
		}
		s.mu.RUnlock()
	}
	return users
}

// ClientsFor returns a snapshot of the user's live connections.
func (pr *PresenceRegistry) ClientsFor(userId int) []*Client {
	s := pr.shard(userId)
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*Client, 0, len(s.users[userId]))
	for c := range s.users[userId] {
		clients = append(clients, c)
	}
	return clients
}
