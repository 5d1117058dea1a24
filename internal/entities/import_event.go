package entities

import "time"

type ImportEventKind string

const (
	ImportEventQuestion      ImportEventKind = "question"
	ImportEventAnswer        ImportEventKind = "answer"
	ImportEventArticle       ImportEventKind = "article"
	ImportEventTokenExchange ImportEventKind = "token_exchange"
)

type ImportStatus string

const (
	ImportStatusCreated ImportStatus = "created"
	ImportStatusFailed  ImportStatus = "failed"
	ImportStatusSkipped ImportStatus = "skipped" // dry run
)

// ImportEvent is one row of the import ledger: a single create call or token
// exchange made during a run.
type ImportEvent struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	RunID     string          `gorm:"index;size:36" json:"run_id"`
	Site      string          `gorm:"size:255" json:"site"`
	Kind      ImportEventKind `gorm:"index;size:20" json:"kind"`
	Title     string          `gorm:"size:255" json:"title"`
	RemoteID  int             `json:"remote_id,omitempty"` // question, answer or article id on the instance
	AccountID string          `gorm:"size:50" json:"account_id,omitempty"`
	Status    ImportStatus    `gorm:"size:20" json:"status"`
	ErrorMsg  string          `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

func (ImportEvent) TableName() string {
	return "import_events"
}
