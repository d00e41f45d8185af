package models

import "time"

// ContractStatus is the lifecycle state of an event contract.
type ContractStatus string

const (
	ContractStatusDraft   ContractStatus = "DRAFT"
	ContractStatusSent    ContractStatus = "SENT"
	ContractStatusSigned  ContractStatus = "SIGNED"
	ContractStatusExpired ContractStatus = "EXPIRED"
	ContractStatusVoid    ContractStatus = "VOID"
)

// ContractTransitions is the allow-list of contract status changes. SIGNED
// and VOID are terminal.
var ContractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusDraft:   {ContractStatusSent, ContractStatusVoid},
	ContractStatusSent:    {ContractStatusSigned, ContractStatusExpired, ContractStatusVoid},
	ContractStatusSigned:  {},
	ContractStatusExpired: {ContractStatusVoid},
	ContractStatusVoid:    {},
}

// CanTransitionContract reports whether from -> to is in the allow-list.
func CanTransitionContract(from, to ContractStatus) bool {
	for _, s := range ContractTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ContractTemplate is reusable contract wording.
type ContractTemplate struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	ValidityDays int       `gorm:"not null;default:14" json:"validity_days"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ContractTemplate) TableName() string {
	return "contract_templates"
}

// EventContract is a contract instance sent to a client for an event.
type EventContract struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	EventID     uint              `gorm:"not null;index" json:"event_id"`
	TemplateID  uint              `gorm:"not null;index" json:"template_id"`
	Template    *ContractTemplate `gorm:"foreignKey:TemplateID" json:"-"`
	Status      ContractStatus    `gorm:"not null;default:'DRAFT'" json:"status"`
	Content     string            `gorm:"type:text;not null" json:"content"`
	ValidUntil  *time.Time        `json:"valid_until,omitempty"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	SignedAt    *time.Time        `json:"signed_at,omitempty"`
	ExpiredAt   *time.Time        `json:"expired_at,omitempty"`
	VoidedAt    *time.Time        `json:"voided_at,omitempty"`
	SignerName  string            `json:"signer_name,omitempty"`
	Signature   string            `gorm:"type:text" json:"-"`
	DocumentKey *string           `json:"document_key,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (EventContract) TableName() string {
	return "event_contracts"
}
