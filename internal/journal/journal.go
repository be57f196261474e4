package journal

import (
	"strings"
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/pkg/conn"
)

// OrderRecord is one placed order with its sizing audit values.
type OrderRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt     time.Time `gorm:"index"`
	Venue         string    `gorm:"size:16;index"`
	Symbol        string    `gorm:"size:32;index"`
	Side          string    `gorm:"size:8"`
	Kind          string    `gorm:"size:24"`
	Size          float64
	LimitPrice    float64
	TriggerPrice  float64
	ReduceOnly    bool
	OrderID       string `gorm:"size:64"`
	ClientOrderID string `gorm:"size:64"`
	Warnings      string `gorm:"size:256"`
}

func (OrderRecord) TableName() string { return "journal_orders" }

// SwitchRecord is one venue switch attempt.
type SwitchRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"index"`
	From      string    `gorm:"size:16"`
	To        string    `gorm:"size:16"`
	Succeeded bool
	Error     string `gorm:"size:256"`
}

func (SwitchRecord) TableName() string { return "journal_switches" }

// ReconcileRecord is one full REST re-sync.
type ReconcileRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"index"`
	Venue     string    `gorm:"size:16;index"`
	Reason    string    `gorm:"size:32"`
}

func (ReconcileRecord) TableName() string { return "journal_reconciles" }

// Journal is a best-effort audit trail. A nil Journal is a valid no-op, and
// write failures are logged, never surfaced into trading flows.
type Journal struct {
	pg *conn.Postgres
}

// Open connects and migrates the journal tables. An empty DSN yields a nil
// journal.
func Open(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}
	pg, err := conn.Open(conn.Option{DSN: dsn}, &OrderRecord{}, &SwitchRecord{}, &ReconcileRecord{})
	if err != nil {
		return nil, err
	}
	return &Journal{pg: pg}, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.pg.Close()
}

// RecordOrder appends one placed-order row.
func (j *Journal) RecordOrder(rec OrderRecord) {
	j.write(&rec)
}

// RecordSwitch appends one venue-switch row.
func (j *Journal) RecordSwitch(rec SwitchRecord) {
	j.write(&rec)
}

// RecordReconcile appends one reconcile row.
func (j *Journal) RecordReconcile(rec ReconcileRecord) {
	j.write(&rec)
}

func (j *Journal) write(rec any) {
	if j == nil || j.pg == nil {
		return
	}
	if err := j.db().Create(rec).Error; err != nil {
		logs.Errorf("journal write: %v", err)
	}
}

func (j *Journal) db() *gorm.DB {
	return j.pg.DB()
}

// JoinWarnings flattens sizing warnings into the stored form.
func JoinWarnings(warnings []string) string {
	return strings.Join(warnings, ",")
}
