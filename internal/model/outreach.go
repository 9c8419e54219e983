package model

import "time"

// Channel is the medium an outreach item is sent through.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
)

// OutreachStatus is the delivery state of an outreach item.
type OutreachStatus string

const (
	OutreachQueued    OutreachStatus = "queued"
	OutreachDraft     OutreachStatus = "draft"
	OutreachSending   OutreachStatus = "sending"
	OutreachSent      OutreachStatus = "sent"
	OutreachDelivered OutreachStatus = "delivered"
	OutreachOpened    OutreachStatus = "opened"
	OutreachReplied   OutreachStatus = "replied"
	OutreachBounced   OutreachStatus = "bounced"
	OutreachFailed    OutreachStatus = "failed"
)

// DefaultMaxAttempts is the send attempt budget for a new outreach item.
// Four attempts give retries 2, 4 and 8 minutes after attempts one to three.
const DefaultMaxAttempts = 4

// OutreachItem is one scheduled outbound message.
type OutreachItem struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	FounderID         string         `json:"founder_id"`
	CompanyID         string         `json:"company_id,omitempty"`
	Channel           Channel        `json:"channel"`
	Recipient         string         `json:"recipient,omitempty"`
	Subject           string         `json:"subject,omitempty"`
	Content           string         `json:"content"`
	Status            OutreachStatus `json:"status"`
	Attempts          int            `json:"attempts"`
	MaxAttempts       int            `json:"max_attempts"`
	ScheduledFor      time.Time      `json:"scheduled_for"`
	NextAttemptAt     *time.Time     `json:"next_attempt_at,omitempty"`
	LastError         string         `json:"last_error,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DueAt is the earliest time the item may be dispatched.
func (o *OutreachItem) DueAt() time.Time {
	if o.NextAttemptAt != nil && o.NextAttemptAt.After(o.ScheduledFor) {
		return *o.NextAttemptAt
	}
	return o.ScheduledFor
}

// Terminal reports whether dispatch will never touch the item again.
func (o *OutreachItem) Terminal() bool {
	return o.Status == OutreachSent || o.Status == OutreachFailed
}

// Template is a user's reusable message body with placeholders.
type Template struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
