package amqp

import (
	"encoding/json"
	"time"

	"expensedesk/internal/core"
)

// ReviewedMessage is the compact event published after a decision commits.
// Consumers that need the full expense fetch it from the database.
type ReviewedMessage struct {
	ExpenseID  string    `json:"expense_id"`
	ApprovalID string    `json:"approval_id"`
	Status     string    `json:"status"`
	Reviewer   string    `json:"reviewer"`
	ReviewDate string    `json:"review_date"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewReviewedMessage builds the event for a committed approval record.
func NewReviewedMessage(record core.ApprovalRecord) *ReviewedMessage {
	return &ReviewedMessage{
		ExpenseID:  record.ExpenseID,
		ApprovalID: record.ID,
		Status:     string(record.Status),
		Reviewer:   record.Reviewer,
		ReviewDate: record.ReviewDate.String(),
		Timestamp:  time.Now(),
	}
}

func (m *ReviewedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReviewedMessageFromJSON(data []byte) (*ReviewedMessage, error) {
	var msg ReviewedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
