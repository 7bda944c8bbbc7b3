package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/pureclean/api/internal/domain"
)

// orderWizard drives the Stage 3 order-parameter sub-steps and keeps the
// derived totals current. Like the item sub-wizard it mutates a session clone
// that the caller commits all-or-nothing.
type orderWizard struct {
	engine *PriceEngine
	policy PricingPolicy
	sink   OrderSink
	now    func() time.Time
}

func newOrderWizard(engine *PriceEngine, policy PricingPolicy, sink OrderSink, now func() time.Time) (*orderWizard, error) {
	if engine == nil {
		return nil, errors.New("order wizard: price engine is required")
	}
	if sink == nil {
		return nil, errors.New("order wizard: order sink is required")
	}
	if now == nil {
		now = time.Now
	}
	return &orderWizard{engine: engine, policy: policy, sink: sink, now: now}, nil
}

// enter initializes the Stage 3 state when the operator proceeds past item
// management.
func (w *orderWizard) enter(ctx context.Context, session *domain.WizardSession) error {
	now := w.now().UTC()
	hasLeather := session.HasCategory(domain.CategoryLeatherCleaning, domain.CategoryLeatherRepair, domain.CategorySheepskinCoat)
	standard := w.policy.StandardCompletionDate(now, w.policy.ProcessingDays(hasLeather))

	session.Parameters = &domain.OrderParametersState{
		Execution: domain.ExecutionParams{
			Tier:         domain.ExpediteStandard,
			ExpectedDate: standard,
			StandardDate: standard,
		},
		Discount:        domain.DiscountSelection{Type: domain.DiscountNone},
		HasLeatherItems: hasLeather,
	}
	session.Stage = domain.StageParameters
	session.Step = domain.StepExecutionParams
	return w.deriveTotals(ctx, session)
}

func (w *orderWizard) submit(ctx context.Context, session *domain.WizardSession, step domain.WizardStep, payload StepPayload) error {
	if session.Parameters == nil {
		return &StateError{From: session.Step, Event: "submit " + string(step)}
	}
	switch step {
	case domain.StepExecutionParams:
		return w.submitExecution(ctx, session, payload.Execution)
	case domain.StepDiscount:
		return w.submitDiscount(ctx, session, payload.Discount)
	case domain.StepPayment:
		return w.submitPayment(ctx, session, payload.Payment)
	case domain.StepAdditionalInfo:
		return w.submitAdditional(session, payload.Additional)
	case domain.StepConfirmOrder:
		return w.confirmOrder(ctx, session)
	default:
		return &StateError{From: session.Step, Event: "submit " + string(step)}
	}
}

func (w *orderWizard) back(session *domain.WizardSession) {
	switch session.Step {
	case domain.StepExecutionParams:
		session.Stage = domain.StageItems
		session.Step = domain.StepItems
	case domain.StepDiscount:
		session.Step = domain.StepExecutionParams
	case domain.StepPayment:
		session.Step = domain.StepDiscount
	case domain.StepAdditionalInfo:
		session.Step = domain.StepPayment
	case domain.StepConfirmOrder:
		session.Step = domain.StepAdditionalInfo
	}
}

func (w *orderWizard) submitExecution(ctx context.Context, session *domain.WizardSession, in *domain.ExecutionParams) error {
	if in == nil {
		return fmt.Errorf("%w: execution payload is required", ErrWizardInvalidInput)
	}
	params := session.Parameters
	now := w.now().UTC()
	standard := params.Execution.StandardDate
	if standard.IsZero() {
		standard = w.policy.StandardCompletionDate(now, w.policy.ProcessingDays(params.HasLeatherItems))
	}

	tier := in.Tier
	if tier == "" {
		tier = w.policy.TierForDate(now, in.ExpectedDate, standard)
	}
	if tier != domain.ExpediteStandard && params.HasLeatherItems {
		return &ValidationError{Step: domain.StepExecutionParams, Field: "tier",
			Message: "orders with leather items require extended processing and cannot be expedited"}
	}

	expected := in.ExpectedDate
	if expected.IsZero() {
		expected = w.policy.DateForTier(now, tier, standard)
	}
	if !expected.After(now) {
		return &ValidationError{Step: domain.StepExecutionParams, Field: "expectedDate", Message: "expected date must be in the future"}
	}
	if tier == domain.ExpediteStandard && expected.Before(standard) {
		return &ValidationError{Step: domain.StepExecutionParams, Field: "expectedDate",
			Message: "date before the standard turnaround requires an expedite tier"}
	}

	params.Execution = domain.ExecutionParams{ExpectedDate: expected, Tier: tier, StandardDate: standard}
	if err := w.deriveTotals(ctx, session); err != nil {
		return err
	}
	session.Step = domain.StepDiscount
	return nil
}

func (w *orderWizard) submitDiscount(ctx context.Context, session *domain.WizardSession, in *domain.DiscountSelection) error {
	if in == nil {
		return fmt.Errorf("%w: discount payload is required", ErrWizardInvalidInput)
	}
	sel := *in
	if sel.Type == "" {
		sel.Type = domain.DiscountNone
	}
	if sel.Type == domain.DiscountCustom {
		if _, ok := w.policy.EffectiveDiscountPercent(sel); !ok {
			return &ValidationError{Step: domain.StepDiscount, Field: "customPercent",
				Message: fmt.Sprintf("custom discount must be between %d and %d percent", minCustomDiscountPercent, maxCustomDiscountPercent)}
		}
		if strings.TrimSpace(sel.Description) == "" {
			return &ValidationError{Step: domain.StepDiscount, Field: "description", Message: "a reason is required for a custom discount"}
		}
		if len([]rune(sel.Description)) > domain.MaxDiscountDescriptionLength {
			return &ValidationError{Step: domain.StepDiscount, Field: "description",
				Message: fmt.Sprintf("description must not exceed %d characters", domain.MaxDiscountDescriptionLength)}
		}
	}

	previous := session.Parameters.Discount
	session.Parameters.Discount = sel
	if err := w.deriveTotals(ctx, session); err != nil {
		session.Parameters.Discount = previous
		return err
	}
	session.Step = domain.StepPayment
	return nil
}

func (w *orderWizard) submitPayment(ctx context.Context, session *domain.WizardSession, in *domain.PaymentParams) error {
	if in == nil {
		return fmt.Errorf("%w: payment payload is required", ErrWizardInvalidInput)
	}
	params := session.Parameters
	if in.PaidAmount < 0 {
		return &ValidationError{Step: domain.StepPayment, Field: "paidAmount", Message: "paid amount cannot be negative"}
	}
	if in.PaidAmount > params.FinalTotal {
		return &ValidationError{Step: domain.StepPayment, Field: "paidAmount", Message: "paid amount cannot exceed the order total"}
	}
	if in.PaidAmount > 0 {
		switch in.Method {
		case domain.PaymentCash:
			if in.PaidAmount > domain.MaxCashAmount {
				return &ValidationError{Step: domain.StepPayment, Field: "paidAmount",
					Message: fmt.Sprintf("cash payments are capped at %.0f", domain.MaxCashAmount)}
			}
		case domain.PaymentTerminal:
			if in.PaidAmount < domain.MinTerminalAmount {
				return &ValidationError{Step: domain.StepPayment, Field: "paidAmount",
					Message: fmt.Sprintf("terminal payments start at %.0f", domain.MinTerminalAmount)}
			}
		case domain.PaymentBankTransfer:
			if in.PaidAmount < domain.MinBankTransferAmount {
				return &ValidationError{Step: domain.StepPayment, Field: "paidAmount",
					Message: fmt.Sprintf("bank transfers start at %.0f", domain.MinBankTransferAmount)}
			}
		default:
			return &ValidationError{Step: domain.StepPayment, Field: "method", Message: "a payment method is required"}
		}
	}

	params.Payment = *in
	params.Debt = clampDebt(params.FinalTotal - in.PaidAmount)
	session.Step = domain.StepAdditionalInfo
	return nil
}

func (w *orderWizard) submitAdditional(session *domain.WizardSession, in *domain.AdditionalInfo) error {
	if in != nil {
		session.Parameters.Additional = *in
	}
	session.Step = domain.StepConfirmOrder
	return nil
}

func (w *orderWizard) confirmOrder(ctx context.Context, session *domain.WizardSession) error {
	if len(session.Items) == 0 {
		return &ValidationError{Step: domain.StepConfirmOrder, Field: "items", Message: "an order needs at least one item"}
	}
	// Totals are re-derived one last time so the committed order can never
	// carry a stale amount.
	if err := w.deriveTotals(ctx, session); err != nil {
		return err
	}
	params := session.Parameters
	params.Debt = clampDebt(params.FinalTotal - params.Payment.PaidAmount)

	order := &domain.Order{
		ID:         session.OrderID,
		Client:     *session.Client,
		Items:      append([]domain.OrderItem(nil), session.Items...),
		Parameters: *params,
		CreatedAt:  w.now().UTC(),
	}
	if err := w.sink.Commit(ctx, order); err != nil {
		return &InfrastructureError{Op: "orders.commit", Err: err}
	}

	session.Stage = domain.StageCompleted
	session.Step = domain.StepCompleted
	return nil
}

// deriveTotals recomputes the order totals from the committed items and the
// current expedite/discount selections. Discount-ineligible categories keep
// their undiscounted price; the expedite surcharge applies across the board.
func (w *orderWizard) deriveTotals(ctx context.Context, session *domain.WizardSession) error {
	params := session.Parameters
	params.ItemTotal = session.ItemTotal()
	params.HasNonDiscountableItems = false
	params.ValidationMessages = params.ValidationMessages[:0]

	var final float64
	for _, item := range session.Items {
		if !w.policy.IsCategoryDiscountEligible(item.Category) {
			params.HasNonDiscountableItems = true
		}
		breakdown, err := w.engine.Calculate(ctx, PriceCalculationCommand{
			BasePrice:       item.BasePrice,
			Quantity:        item.Quantity,
			Category:        item.Category,
			ModifierIDs:     item.ModifierIDs,
			RangeValues:     item.RangeValues,
			FixedQuantities: item.FixedQuantities,
			Expedite:        tierForItem(w.policy, item.Category, params.Execution.Tier),
			Discount:        params.Discount,
		})
		if err != nil {
			return err
		}
		final += breakdown.FinalPrice
		for _, warning := range breakdown.Warnings {
			params.ValidationMessages = append(params.ValidationMessages, fmt.Sprintf("%s: %s", item.Name, warning))
		}
	}
	params.FinalTotal = roundHalfUp(final)
	params.Debt = clampDebt(params.FinalTotal - params.Payment.PaidAmount)
	return nil
}

// tierForItem drops the surcharge for categories that cannot be expedited so
// a mixed order never fails total derivation outright.
func tierForItem(policy PricingPolicy, category domain.CategoryCode, tier domain.ExpediteTier) domain.ExpediteTier {
	if !policy.IsCategoryExpeditable(category, tier) {
		return domain.ExpediteStandard
	}
	return tier
}

func clampDebt(debt float64) float64 {
	if debt < 0 {
		return 0
	}
	return roundHalfUp(debt)
}
