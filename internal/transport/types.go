package transport

import (
	"io"
	"time"
)

// User is the server's user record.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Gender   string `json:"gender"`
	Avatar   string `json:"avatar"`
}

// AuthResponse is the shape shared by login and register.
type AuthResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token"`
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Gender   string `json:"gender"`
	Avatar   string `json:"avatar"`
	Message  string `json:"message"`
}

// User converts the flat auth payload into a user record.
func (r *AuthResponse) User() *User {
	return &User{
		ID:       r.ID,
		Username: r.Username,
		Email:    r.Email,
		Gender:   r.Gender,
		Avatar:   r.Avatar,
	}
}

// LoginRequest is the login body.
type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
	Location        string `json:"location"`
}

// RegisterRequest is the registration body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
	Location string `json:"location"`
}

// Participant is a chat member reference.
type Participant struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// Chat is a conversation as returned by the server.
type Chat struct {
	ID            string        `json:"_id"`
	Name          string        `json:"name"`
	IsGroup       bool          `json:"isGroup"`
	Users         []Participant `json:"users"`
	LatestMessage *Message      `json:"latestMessage"`
}

// Sender identifies a message author.
type Sender struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Message is a message as returned by the server. Content is a text
// payload or a media URI depending on Type.
type Message struct {
	ID        string    `json:"_id"`
	ChatID    string    `json:"chatId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	ReadBy    []string  `json:"readBy"`
}

// Pagination is the server's paging metadata for a message history page.
type Pagination struct {
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	PageSize      int `json:"pageSize"`
	TotalMessages int `json:"totalMessages"`
}

// MediaFile is an attachment streamed as a multipart form part.
type MediaFile struct {
	Name   string
	MIME   string
	Reader io.Reader
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type chatsResponse struct {
	Success bool   `json:"success"`
	Chats   []Chat `json:"chats"`
}

type deleteChatsResponse struct {
	Success        bool     `json:"success"`
	DeletedChatIDs []string `json:"deletedChatIds"`
}

type messagesResponse struct {
	Success    bool       `json:"success"`
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

type sendResponse struct {
	Success bool     `json:"success"`
	Message *Message `json:"message"`
}
