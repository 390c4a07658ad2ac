package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the worker to mirror one stored transaction.
// It carries only identity and version; the worker reads the row itself.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"classId"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionDeleteMessage is published after a transaction is removed.
// The row is gone from storage by then, so the id is all the mirror gets.
type TransactionDeleteMessage struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"classId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id, classID string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		ClassID:   classID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func NewTransactionDeleteMessage(id, classID string) *TransactionDeleteMessage {
	return &TransactionDeleteMessage{
		ID:        id,
		ClassID:   classID,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *TransactionDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func TransactionDeleteMessageFromJSON(data []byte) (*TransactionDeleteMessage, error) {
	var msg TransactionDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
