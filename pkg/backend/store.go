package backend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mahaj/chat-feed/pkg/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrForbidden    = errors.New("forbidden")
	ErrBadPassword  = errors.New("invalid email or password")
	ErrInvalidInput = errors.New("invalid input")
)

type account struct {
	profile      model.UserProfile
	passwordHash []byte
}

// Store is the in-memory state behind the development API.
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	accounts      map[string]*account // by id
	byEmail       map[string]string
	messages      []model.Message
	groups        map[string]model.Group
	groupMessages map[string][]model.Message
	friends       map[string]map[string]bool
	requests      map[string]model.FriendRequest
}

func NewStore() *Store {
	return &Store{
		now:           time.Now,
		accounts:      make(map[string]*account),
		byEmail:       make(map[string]string),
		groups:        make(map[string]model.Group),
		groupMessages: make(map[string][]model.Message),
		friends:       make(map[string]map[string]bool),
		requests:      make(map[string]model.FriendRequest),
	}
}

func (s *Store) stamp() model.Timestamp {
	return model.NewTimestamp(s.now().UTC())
}

func (s *Store) Register(req model.RegisterRequest) (model.UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || len(req.Password) < 6 {
		return model.UserProfile{}, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return model.UserProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return model.UserProfile{}, ErrConflict
	}
	u := model.UserProfile{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
	}
	s.accounts[u.ID] = &account{profile: u, passwordHash: hash}
	s.byEmail[email] = u.ID
	return u, nil
}

func (s *Store) Authenticate(email, password string) (model.UserProfile, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	var acc *account
	if ok {
		acc = s.accounts[id]
	}
	s.mu.RUnlock()
	if acc == nil {
		return model.UserProfile{}, ErrBadPassword
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return model.UserProfile{}, ErrBadPassword
	}
	return acc.profile, nil
}

func (s *Store) User(id string) (model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	return acc.profile, nil
}

// Rename changes a user's name; cached names on clients stay stale.
func (s *Store) Rename(id, first, last string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.profile.FirstName, acc.profile.LastName = first, last
	return nil
}

func (s *Store) Users() []model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.UserProfile, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.profile)
	}
	sortUsers(out)
	return out
}

func (s *Store) SendMessage(from, to, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[to]; !ok {
		return model.Message{}, ErrNotFound
	}
	ts := s.stamp()
	m := model.Message{
		ID:         uuid.NewString(),
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		Status:     model.StatusSent,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	s.messages = append(s.messages, m)
	return m, nil
}

// Messages returns one page of the user's direct messages, newest first.
func (s *Store) Messages(userID string, page, size int) []model.Message {
	s.mu.RLock()
	var mine []model.Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			mine = append(mine, m)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].CreatedAt.After(mine[j].CreatedAt.Time)
	})
	return paginate(mine, page, size)
}

// Conversation returns the messages between two users and marks the ones
// addressed to userID as read.
func (s *Store) Conversation(userID, peerID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for i, m := range s.messages {
		switch {
		case m.SenderID == peerID && m.ReceiverID == userID:
			if m.Status != model.StatusRead {
				s.messages[i].Status = model.StatusRead
				s.messages[i].UpdatedAt = s.stamp()
			}
			out = append(out, s.messages[i])
		case m.SenderID == userID && m.ReceiverID == peerID:
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) CreateGroup(creator string, req model.CreateGroupRequest) (model.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(req.MemberIDs) < 2 {
		return model.Group{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	members := []string{creator}
	seen := map[string]bool{creator: true}
	for _, id := range req.MemberIDs {
		if _, ok := s.accounts[id]; !ok {
			return model.Group{}, ErrNotFound
		}
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	g := model.Group{ID: uuid.NewString(), Name: name, MemberIDs: members}
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) member(groupID, userID string) error {
	g, ok := s.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	for _, id := range g.MemberIDs {
		if id == userID {
			return nil
		}
	}
	return ErrForbidden
}

func (s *Store) SendGroupMessage(groupID, from, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.member(groupID, from); err != nil {
		return model.Message{}, err
	}
	ts := s.stamp()
	m := model.Message{
		ID:         uuid.NewString(),
		SenderID:   from,
		SenderName: s.accounts[from].profile.DisplayName(),
		Content:    content,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	s.groupMessages[groupID] = append(s.groupMessages[groupID], m)
	return m, nil
}

func (s *Store) GroupMessages(groupID, userID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.member(groupID, userID); err != nil {
		return nil, err
	}
	return append([]model.Message(nil), s.groupMessages[groupID]...), nil
}

// Group returns a group to one of its members.
func (s *Store) Group(groupID, userID string) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.member(groupID, userID); err != nil {
		return model.Group{}, err
	}
	g := s.groups[groupID]
	g.MemberIDs = append([]string(nil), g.MemberIDs...)
	return g, nil
}

// GroupMembers returns the profiles of a group's members in join order.
func (s *Store) GroupMembers(groupID, userID string) ([]model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.member(groupID, userID); err != nil {
		return nil, err
	}
	ids := s.groups[groupID].MemberIDs
	out := make([]model.UserProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.accounts[id].profile)
	}
	return out, nil
}

// RequestFriend records a pending request from one user to another. Asking
// an existing friend, or asking twice, is a conflict.
func (s *Store) RequestFriend(from, to string) (model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[to]; !ok || from == to {
		return model.FriendRequest{}, ErrNotFound
	}
	if s.friends[from][to] {
		return model.FriendRequest{}, ErrConflict
	}
	for _, r := range s.requests {
		if r.SenderID == from && r.ReceiverID == to && r.Status == model.FriendRequestPending {
			return model.FriendRequest{}, ErrConflict
		}
	}
	ts := s.stamp()
	r := model.FriendRequest{
		ID:         uuid.NewString(),
		SenderID:   from,
		ReceiverID: to,
		Status:     model.FriendRequestPending,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	s.requests[r.ID] = r
	return r, nil
}

func (s *Store) PendingRequests(userID string) []model.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.FriendRequest
	for _, r := range s.requests {
		if r.ReceiverID == userID && r.Status == model.FriendRequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt.Time) })
	return out
}

func (s *Store) AcceptRequest(userID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if r.ReceiverID != userID {
		return ErrForbidden
	}
	r.Status = model.FriendRequestAccepted
	r.UpdatedAt = s.stamp()
	s.requests[requestID] = r
	s.link(r.SenderID, r.ReceiverID)
	s.link(r.ReceiverID, r.SenderID)
	return nil
}

func (s *Store) link(a, b string) {
	if s.friends[a] == nil {
		s.friends[a] = make(map[string]bool)
	}
	s.friends[a][b] = true
}

func (s *Store) Friends(userID string) []model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.UserProfile
	for id := range s.friends[userID] {
		out = append(out, s.accounts[id].profile)
	}
	sortUsers(out)
	return out
}

func sortUsers(users []model.UserProfile) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].ID < users[j].ID
	})
}

func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	start := page * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
