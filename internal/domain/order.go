package domain

import "time"

// PaymentMethod enumerates the accepted tenders.
type PaymentMethod string

const (
	// PaymentTerminal is card payment at the counter terminal.
	PaymentTerminal PaymentMethod = "TERMINAL"
	// PaymentCash is cash at the counter.
	PaymentCash PaymentMethod = "CASH"
	// PaymentBankTransfer is an invoice settled by bank transfer.
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Tender limits enforced by the payment guards.
const (
	// MaxCashAmount is the legal cap for a single cash payment.
	MaxCashAmount = 50000.0
	// MinTerminalAmount is the smallest chargeable terminal payment.
	MinTerminalAmount = 1.0
	// MinBankTransferAmount is the smallest invoiceable transfer.
	MinBankTransferAmount = 100.0
)

// MaxDiscountDescriptionLength bounds the free-text custom discount reason.
const MaxDiscountDescriptionLength = 255

// Processing durations used when deriving the expected completion date.
const (
	// StandardProcessingDays is the default turnaround in business days.
	StandardProcessingDays = 2
	// LeatherProcessingDays is the extended turnaround for leather items.
	LeatherProcessingDays = 14
)

// ExecutionParams is the first order-level sub-step: when the order is due.
type ExecutionParams struct {
	ExpectedDate time.Time
	Tier         ExpediteTier
	// StandardDate is the derived no-surcharge completion date.
	StandardDate time.Time
}

// PaymentParams is the third order-level sub-step: how the order is paid.
type PaymentParams struct {
	Method     PaymentMethod
	PaidAmount float64
}

// AdditionalInfo is the final, optional order-level sub-step.
type AdditionalInfo struct {
	OrderNotes         string
	ClientRequirements string
}

// OrderParametersState aggregates the Stage 3 sub-step data together with the
// derived financials. FinalTotal is always recomputed from the committed item
// list and the current discount/expedite selections, never cached stale.
type OrderParametersState struct {
	Execution  ExecutionParams
	Discount   DiscountSelection
	Payment    PaymentParams
	Additional AdditionalInfo

	ItemTotal  float64
	FinalTotal float64
	// Debt is FinalTotal − PaidAmount, clamped at zero.
	Debt float64

	HasLeatherItems         bool
	HasNonDiscountableItems bool
	ValidationMessages      []string
}

// ClientInfo is the Stage 1 payload identifying the client and order.
type ClientInfo struct {
	ClientID     string
	ClientName   string
	ClientPhone  string
	Branch       string
	ReceiptLabel string
}

// Order is the committed output of a completed wizard run.
type Order struct {
	ID string
	// Number is the sequential receipt number stamped when the order is
	// committed.
	Number     int64
	Client     ClientInfo
	Items      []OrderItem
	Parameters OrderParametersState
	CreatedAt  time.Time
}
