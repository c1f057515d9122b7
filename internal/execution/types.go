package execution

import "time"

type ActionStatus string

type AttemptStatus string

const (
	ActionStatusPlanned   ActionStatus = "planned"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

const (
	AttemptStatusSubmitted AttemptStatus = "submitted"
	AttemptStatusConfirmed AttemptStatus = "confirmed"
	AttemptStatusRejected  AttemptStatus = "rejected"
)

// Attempt records one on-chain submission. A single action may carry several
// attempts when the executor shrinks the amount after limit rejections.
type Attempt struct {
	Seq      int           `json:"seq"`
	Status   AttemptStatus `json:"status"`
	Amount   uint64        `json:"amount,string"`
	TxDigest string        `json:"tx_digest,omitempty"`
	Error    string        `json:"error,omitempty"`
	At       string        `json:"at"`
}

// Action is the durable record of one user intent and everything the
// executor did on its behalf.
type Action struct {
	ActionID        string         `json:"action_id"`
	IntentType      string         `json:"intent_type"`
	Status          ActionStatus   `json:"status"`
	Network         string         `json:"network"`
	Sender          string         `json:"sender,omitempty"`
	AssetType       string         `json:"asset_type,omitempty"`
	EntryPoint      string         `json:"entry_point,omitempty"`
	RequestedAmount uint64         `json:"requested_amount,string"`
	ExecutedAmount  uint64         `json:"executed_amount,string,omitempty"`
	TxDigest        string         `json:"tx_digest,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	Attempts        []Attempt      `json:"attempts"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func NewAction(actionID, intentType, network string) Action {
	now := time.Now().UTC().Format(time.RFC3339)
	return Action{
		ActionID:   actionID,
		IntentType: intentType,
		Status:     ActionStatusPlanned,
		Network:    network,
		CreatedAt:  now,
		UpdatedAt:  now,
		Attempts:   []Attempt{},
	}
}

func (a *Action) Touch() {
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

func (a *Action) Record(attempt Attempt) {
	attempt.Seq = len(a.Attempts) + 1
	attempt.At = time.Now().UTC().Format(time.RFC3339)
	a.Attempts = append(a.Attempts, attempt)
	a.Touch()
}
