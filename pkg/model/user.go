package model

import "strings"

type UserProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

// DisplayName is "<firstName> <lastName>".
func (u UserProfile) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "PENDING"
	FriendRequestAccepted FriendRequestStatus = "ACCEPTED"
	FriendRequestRejected FriendRequestStatus = "REJECTED"
)

type FriendRequest struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"senderId"`
	ReceiverID string              `json:"receiverId"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  Timestamp           `json:"createdAt"`
	UpdatedAt  Timestamp           `json:"updatedAt"`
}

type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required"`
	MemberIDs []string `json:"memberIds" validate:"min=2,unique,dive,required"`
}

// Normalize trims the group name in place.
func (r *CreateGroupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken,omitempty"`
	Message     string `json:"message,omitempty"`
}

type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"min=6"`
}

// Normalize trims the name and email fields in place.
func (r *RegisterRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}
