package models

import "time"

const (
	PlanStatusOngoing   = "ONGOING"
	PlanStatusCompleted = "COMPLETED"
)

// InstallmentPlan = rencana cicilan satu order.
// Invariant: InstallmentsPaid <= InstallmentCount.
// Status COMPLETED persis ketika paid == count, dan NextDueDate harus NULL saat itu.
type InstallmentPlan struct {
	ID                uint64     `gorm:"primaryKey" json:"id"`
	OrderID           uint64     `gorm:"uniqueIndex;not null" json:"order_id"`
	InstallmentCount  int        `gorm:"not null" json:"installment_count"`
	InstallmentsPaid  int        `gorm:"not null;default:0" json:"installments_paid"`
	InstallmentAmount int64      `gorm:"not null" json:"installment_amount"` // Minor units per cicilan
	Status            string     `gorm:"size:15;not null;default:ONGOING" json:"status"`
	NextDueDate       *time.Time `gorm:"index" json:"next_due_date,omitempty"`
	ChargeFiredAt     *time.Time `json:"-"` // Penanda in-flight: scheduler sudah nembak charge, nunggu webhook
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
