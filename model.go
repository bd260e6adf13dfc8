package labflow

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusRunning   OrderStatus = "running"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusFailed
}

// orderStatusTransitions - the allowed forward transitions of a test order
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusRunning, OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusRunning: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed},
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func IsValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPending, OrderStatusRunning, OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

type AgeGroup string

const (
	AgeGroupInfant     AgeGroup = "infant"
	AgeGroupChild      AgeGroup = "child"
	AgeGroupAdolescent AgeGroup = "adolescent"
	AgeGroupAdult      AgeGroup = "adult"
	AgeGroupSenior     AgeGroup = "senior"
)

type FlagSeverity string

const (
	FlagSeverityCritical FlagSeverity = "critical"
	FlagSeverityWarning  FlagSeverity = "warning"
	FlagSeverityInfo     FlagSeverity = "info"
)

func IsValidFlagSeverity(severity FlagSeverity) bool {
	switch severity {
	case FlagSeverityCritical, FlagSeverityWarning, FlagSeverityInfo:
		return true
	}
	return false
}

type Patient struct {
	ID          string
	FirstName   string
	LastName    string
	Sex         *Sex
	DateOfBirth *time.Time
	CreatedAt   time.Time
}

type InstrumentStatus string

const (
	InstrumentReady       InstrumentStatus = "READY"
	InstrumentOffline     InstrumentStatus = "OFFLINE"
	InstrumentMaintenance InstrumentStatus = "MAINTENANCE"
)

type Instrument struct {
	ID         string
	Name       string
	Status     InstrumentStatus
	CreatedAt  time.Time
	ModifiedAt *time.Time
}

// Parameter - master data of a measurable analyte, maintained by an external surface
type Parameter struct {
	ID     string
	Code   string
	Name   string
	Unit   string
	Active bool
}

type TestResult struct {
	ID               string
	ParameterID      string
	ParameterCode    string
	Value            decimal.Decimal
	Unit             string
	ReferenceRange   string
	IsFlagged        bool
	FlagSeverity     *FlagSeverity
	ReagentLotNumber *string
	MeasuredAt       time.Time
}

type Comment struct {
	ID         string
	Text       string
	CreatedBy  string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	DeletedAt  *time.Time
}

type TestOrder struct {
	ID           string
	OrderNumber  string
	Barcode      string
	PatientID    string
	InstrumentID *string
	Status       OrderStatus
	TestResults  []TestResult
	Comments     []Comment
	CreatedBy    string
	CreatedAt    time.Time
	ModifiedAt   *time.Time
	RunBy        *string
	RunAt        *time.Time
}

// RawResult - an unsynced instrument exchange awaiting decode-and-flag
type RawResult struct {
	ID           string
	OrderID      string
	InstrumentID string
	Message      string
	CreatedAt    time.Time
	SyncedAt     *time.Time
}

type FlaggingConfiguration struct {
	ID          string
	ParameterID string
	Sex         *Sex
	AgeGroup    *AgeGroup
	RangeMin    decimal.Decimal
	RangeMax    decimal.Decimal
	FlagType    FlagSeverity
	Active      bool
	CreatedBy   string
	CreatedAt   time.Time
	ModifiedAt  *time.Time
}

// Specificity - count of non-wildcard matching dimensions of a flagging rule
func (c FlaggingConfiguration) Specificity() int {
	specificity := 0
	if c.Sex != nil {
		specificity++
	}
	if c.AgeGroup != nil {
		specificity++
	}
	return specificity
}

// FlagVerdict - the resolver's decision for a single measured value
type FlagVerdict struct {
	Flagged        bool
	Severity       *FlagSeverity
	ReferenceRange string
}

type InventoryStatus string

const (
	InventoryReceived        InventoryStatus = "received"
	InventoryPartialShipment InventoryStatus = "partial_shipment"
	InventoryReturned        InventoryStatus = "returned"
)

// ReagentInventory - a warehouse lot. Quantities are tracked independently from
// the installed-on-instrument copies.
type ReagentInventory struct {
	ID               string
	ReagentTypeID    string
	Name             string
	LotNumber        string
	ExpirationDate   time.Time
	QuantityReceived decimal.Decimal
	QuantityInStock  decimal.Decimal
	Status           InventoryStatus
	ReturnReason     *string
	CreatedAt        time.Time
	ModifiedAt       *time.Time
}

type InstrumentReagentStatus string

const (
	ReagentInUse    InstrumentReagentStatus = "in_use"
	ReagentNotInUse InstrumentReagentStatus = "not_in_use"
	ReagentExpired  InstrumentReagentStatus = "expired"
)

func IsValidInstrumentReagentStatus(status InstrumentReagentStatus) bool {
	switch status {
	case ReagentInUse, ReagentNotInUse, ReagentExpired:
		return true
	}
	return false
}

// InstrumentReagent - a point-in-time copy of an inventory lot made at install
// time. Later master-data edits never alter what was installed.
type InstrumentReagent struct {
	ID                string
	InstrumentID      string
	ReagentTypeID     string
	Name              string
	LotNumber         string
	ExpirationDate    time.Time
	Quantity          decimal.Decimal
	QuantityRemaining decimal.Decimal
	Status            InstrumentReagentStatus
	InstalledBy       string
	InstalledAt       time.Time
	ModifiedAt        *time.Time
}

// ReagentUsageHistory - append-only ledger entry, never mutated after creation
type ReagentUsageHistory struct {
	ID           string
	LotNumber    string
	InstrumentID string
	OrderID      *string
	QuantityUsed decimal.Decimal
	UsedBy       string
	UsedAt       time.Time
}

// ReagentUsage - a single debit requested on order completion
type ReagentUsage struct {
	LotNumber string
	Quantity  decimal.Decimal
}
