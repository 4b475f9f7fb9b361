package amqp

import (
	"encoding/json"
	"time"
)

// EventBillSubmitted is the routing key of BillSubmittedMessage.
const EventBillSubmitted = "bill.submitted"

// BillSubmittedMessage announces that a bill carries submitted metadata.
// The worker reloads the bill from the database.
type BillSubmittedMessage struct {
	Event     string    `json:"event"`
	BillID    string    `json:"billId"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBillSubmittedMessage(billID, email string) *BillSubmittedMessage {
	return &BillSubmittedMessage{
		Event:     EventBillSubmitted,
		BillID:    billID,
		Email:     email,
		Timestamp: time.Now(),
	}
}

func (m *BillSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillSubmittedMessageFromJSON(data []byte) (*BillSubmittedMessage, error) {
	var msg BillSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
