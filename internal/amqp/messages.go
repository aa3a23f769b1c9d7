package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CommandMessage carries one chat line from any transport to the worker.
type CommandMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCommandMessage(sender, text string) *CommandMessage {
	return &CommandMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func (m *CommandMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CommandMessageFromJSON(data []byte) (*CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReplyMessage answers a CommandMessage. Handled is false when the text
// matched no command; Text is then empty.
type ReplyMessage struct {
	ID        string    `json:"id"`
	CommandID string    `json:"command_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Handled   bool      `json:"handled"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReplyMessage(cmd *CommandMessage, text string, handled bool) *ReplyMessage {
	return &ReplyMessage{
		ID:        uuid.NewString(),
		CommandID: cmd.ID,
		Sender:    cmd.Sender,
		Text:      text,
		Handled:   handled,
		Timestamp: time.Now(),
	}
}

func (m *ReplyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReplyMessageFromJSON(data []byte) (*ReplyMessage, error) {
	var msg ReplyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LedgerEvent announces a successful ledger mutation.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Key       string    `json:"key,omitempty"`
	Item      string    `json:"item,omitempty"`
	Amount    int64     `json:"amount"`
	Period    string    `json:"period"`
	Result    string    `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(eventType, key, item string, amount int64, period, result string) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Key:       key,
		Item:      item,
		Amount:    amount,
		Period:    period,
		Result:    result,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
