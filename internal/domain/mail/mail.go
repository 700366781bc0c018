// Package mail defines the message, recipient and delivery types shared by
// every notification path.
package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Recipient is an addressee as submitted by clients.
type Recipient struct {
	Email    string `json:"email"`
	FullName string `json:"fullname,omitempty"`
}

// DisplayName returns the recipient's name or fallback when unset.
func (r Recipient) DisplayName(fallback string) string {
	if n := strings.TrimSpace(r.FullName); n != "" {
		return n
	}
	return fallback
}

// Recipients accepts either a single recipient object or an array in JSON.
type Recipients []Recipient

// UnmarshalJSON implements json.Unmarshaler.
func (rs *Recipients) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*rs = nil
		return nil
	}
	if data[0] == '[' {
		var list []Recipient
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*rs = list
		return nil
	}
	var one Recipient
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*rs = Recipients{one}
	return nil
}

// Priority controls the importance headers set on a message.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Message is a fully rendered email ready for a transport.
type Message struct {
	From     string
	To       string
	Bcc      []string
	Subject  string
	HTML     string
	Text     string
	Priority Priority
	Headers  map[string]string
}

// PriorityHeaders returns the headers mail clients use to flag urgent mail.
func (m Message) PriorityHeaders() map[string]string {
	if m.Priority != PriorityHigh {
		return nil
	}
	return map[string]string{
		"X-Priority":        "1",
		"X-MSMail-Priority": "High",
		"Importance":        "High",
	}
}

// Receipt is what a transport reports after accepting a message.
type Receipt struct {
	MessageID string    `json:"messageId"`
	Response  string    `json:"response,omitempty"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sentAt"`
}

// Delivered is one successful send inside a batch.
type Delivered struct {
	Email     string `json:"email"`
	MessageID string `json:"messageId"`
}

// Failure is one failed send inside a batch.
type Failure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// UnknownEmail labels failures for entries that carried no address.
const UnknownEmail = "unknown"

// BulkResult accumulates per-recipient outcomes of a batch send.
type BulkResult struct {
	Success []Delivered `json:"success"`
	Failed  []Failure   `json:"failed"`
}

// NewBulkResult returns an empty result whose slices encode as [] not null.
func NewBulkResult() BulkResult {
	return BulkResult{Success: []Delivered{}, Failed: []Failure{}}
}

// Summary renders "<n> successful, <m> failed".
func (b BulkResult) Summary() string {
	return fmt.Sprintf("%d successful, %d failed", len(b.Success), len(b.Failed))
}

// DeliveryState is the lifecycle of a single tracked send.
type DeliveryState string

const (
	StateSending DeliveryState = "sending"
	StateSent    DeliveryState = "sent"
	StateFailed  DeliveryState = "failed"
)

// Status is the last known delivery state for a recipient address.
type Status struct {
	Recipient string        `json:"recipient"`
	Status    DeliveryState `json:"status"`
	Subject   string        `json:"subject,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	Response  string        `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
	SentAt    time.Time     `json:"sentAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NormalizeAddress lower-cases and trims an address for use as a lookup key.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
