package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pureclean/api/internal/domain"
	"github.com/pureclean/api/internal/platform/httpx"
	"github.com/pureclean/api/internal/services"
)

const (
	maxWizardBodySize = 64 * 1024
	maxPhotoBodySize  = 12 << 20
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")

	// textPolicy strips all markup from operator-entered free text.
	textPolicy = bluemonday.StrictPolicy()
)

// WizardHandlers exposes the order wizard session endpoints.
type WizardHandlers struct {
	wizard   services.WizardService
	photos   services.PhotoStore
	photoTTL time.Duration
}

// NewWizardHandlers constructs the wizard endpoint handlers. The photo store
// is optional; without one the photo upload endpoint reports unavailability.
func NewWizardHandlers(wizard services.WizardService, photos services.PhotoStore, photoTTL time.Duration) *WizardHandlers {
	if photoTTL <= 0 {
		photoTTL = 15 * time.Minute
	}
	return &WizardHandlers{wizard: wizard, photos: photos, photoTTL: photoTTL}
}

// Routes wires the /wizard endpoints onto the provided router.
func (h *WizardHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sessions", h.startSession)
	r.Get("/sessions/{sessionID}", h.getSession)
	r.Delete("/sessions/{sessionID}", h.cancelSession)
	r.Post("/sessions/{sessionID}/steps/{step}", h.submitStep)
	r.Post("/sessions/{sessionID}/back", h.goBack)
	r.Post("/sessions/{sessionID}/reset", h.resetSession)
	r.Post("/sessions/{sessionID}/items/{itemID}/photos", h.uploadPhoto)
}

func (h *WizardHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wizard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "wizard service is unavailable", http.StatusServiceUnavailable))
		return
	}
	snap, err := h.wizard.StartSession(ctx)
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildSnapshotPayload(snap))
}

func (h *WizardHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wizard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "wizard service is unavailable", http.StatusServiceUnavailable))
		return
	}
	snap, err := h.wizard.Snapshot(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSnapshotPayload(snap))
}

func (h *WizardHandlers) cancelSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wizard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "wizard service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if err := h.wizard.CancelSession(ctx, chi.URLParam(r, "sessionID")); err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WizardHandlers) submitStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wizard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "wizard service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWizardBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	payload, err := parseStepPayload(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	snap, err := h.wizard.SubmitStep(ctx, services.SubmitStepCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Step:      domain.WizardStep(chi.URLParam(r, "step")),
		Payload:   payload,
	})
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSnapshotPayload(snap))
}

func (h *WizardHandlers) goBack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wizard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "wizard service is unavailable", http.StatusServiceUnavailable))
		return
	}
	snap, err := h.wizard.GoBack(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSnapshotPayload(snap))
}

func (h *WizardHandlers) resetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wizard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "wizard service is unavailable", http.StatusServiceUnavailable))
		return
	}
	snap, err := h.wizard.ResetSession(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeWizardError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSnapshotPayload(snap))
}

func (h *WizardHandlers) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.photos == nil {
		httpx.WriteError(ctx, w, httpx.NewError("photos_unavailable", "photo storage is not configured", http.StatusServiceUnavailable))
		return
	}

	if err := r.ParseMultipartForm(maxPhotoBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected a multipart form with a photo file", http.StatusBadRequest))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "photo file is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read photo payload", http.StatusBadRequest))
		return
	}
	if int64(len(data)) > maxPhotoBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "photo exceeds the size limit", http.StatusRequestEntityTooLarge))
		return
	}

	ref, err := h.photos.Upload(ctx, chi.URLParam(r, "sessionID"), chi.URLParam(r, "itemID"), header.Filename, data)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("photo_upload_failed", err.Error(), http.StatusBadGateway))
		return
	}

	payload := photoRefPayload{
		ID:         ref.ID,
		ObjectName: ref.ObjectName,
		UploadedAt: formatTime(ref.UploadedAt),
	}
	if url, err := h.photos.SignedURL(ctx, ref, h.photoTTL); err == nil {
		payload.URL = url
	}
	writeJSONResponse(w, http.StatusCreated, payload)
}

// stepPayloadRequest is the JSON envelope of a step submit. Exactly one field
// is expected, matching the step in the URL.
type stepPayloadRequest struct {
	Client          *clientInfoPayload      `json:"client"`
	Items           *itemsActionPayload     `json:"items"`
	BasicInfo       *basicInfoPayload       `json:"basicInfo"`
	Characteristics *characteristicsPayload `json:"characteristics"`
	StainsDefects   *stainsDefectsPayload   `json:"stainsDefects"`
	Pricing         *pricingInputPayload    `json:"pricing"`
	Photos          *photosInputPayload     `json:"photos"`
	Execution       *executionPayload       `json:"execution"`
	Discount        *discountPayload        `json:"discount"`
	Payment         *paymentPayload         `json:"payment"`
	Additional      *additionalPayload      `json:"additional"`
}

type clientInfoPayload struct {
	ClientID     string `json:"clientId"`
	ClientName   string `json:"clientName"`
	ClientPhone  string `json:"clientPhone"`
	Branch       string `json:"branch"`
	ReceiptLabel string `json:"receiptLabel"`
}

type itemsActionPayload struct {
	Action string `json:"action"`
	ItemID string `json:"itemId"`
}

type basicInfoPayload struct {
	Category string `json:"category"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

type characteristicsPayload struct {
	Material         string `json:"material"`
	Color            string `json:"color"`
	CustomColor      string `json:"customColor"`
	Filler           string `json:"filler"`
	FillerCompressed bool   `json:"fillerCompressed"`
	WearDegree       string `json:"wearDegree"`
}

type stainsDefectsPayload struct {
	Stains            []string `json:"stains"`
	OtherStainNote    string   `json:"otherStainNote"`
	Defects           []string `json:"defects"`
	DefectNotes       string   `json:"defectNotes"`
	NoGuaranteeReason string   `json:"noGuaranteeReason"`
}

type pricingInputPayload struct {
	ModifierIDs     []string           `json:"modifierIds"`
	RangeValues     map[string]float64 `json:"rangeValues"`
	FixedQuantities map[string]int     `json:"fixedQuantities"`
}

type photosInputPayload struct {
	AddRefs       []photoRefInput `json:"addRefs"`
	RemovePhotoID string          `json:"removePhotoId"`
	Skip          bool            `json:"skip"`
	ClearError    bool            `json:"clearError"`
}

type photoRefInput struct {
	ID         string `json:"id"`
	ObjectName string `json:"objectName"`
}

type executionPayload struct {
	ExpectedDate string `json:"expectedDate"`
	Tier         string `json:"tier"`
}

type discountPayload struct {
	Type          string  `json:"type"`
	CustomPercent float64 `json:"customPercent"`
	Description   string  `json:"description"`
}

type paymentPayload struct {
	Method     string  `json:"method"`
	PaidAmount float64 `json:"paidAmount"`
}

type additionalPayload struct {
	OrderNotes         string `json:"orderNotes"`
	ClientRequirements string `json:"clientRequirements"`
}

func parseStepPayload(body []byte) (services.StepPayload, error) {
	var out services.StepPayload
	if len(strings.TrimSpace(string(body))) == 0 {
		return out, nil
	}
	var req stepPayloadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return out, fmt.Errorf("invalid JSON payload: %w", err)
	}

	if req.Client != nil {
		out.Client = &domain.ClientInfo{
			ClientID:     strings.TrimSpace(req.Client.ClientID),
			ClientName:   sanitizeText(req.Client.ClientName),
			ClientPhone:  strings.TrimSpace(req.Client.ClientPhone),
			Branch:       sanitizeText(req.Client.Branch),
			ReceiptLabel: sanitizeText(req.Client.ReceiptLabel),
		}
	}
	if req.Items != nil {
		out.Items = &services.ItemsStepInput{
			Action: services.ItemsAction(strings.TrimSpace(req.Items.Action)),
			ItemID: strings.TrimSpace(req.Items.ItemID),
		}
	}
	if req.BasicInfo != nil {
		out.BasicInfo = &domain.ItemBasicInfo{
			Category: domain.CategoryCode(strings.ToUpper(strings.TrimSpace(req.BasicInfo.Category))),
			ItemName: sanitizeText(req.BasicInfo.ItemName),
			Quantity: req.BasicInfo.Quantity,
		}
	}
	if req.Characteristics != nil {
		out.Characteristics = &domain.ItemCharacteristics{
			Material:         sanitizeText(req.Characteristics.Material),
			Color:            strings.TrimSpace(req.Characteristics.Color),
			CustomColor:      sanitizeText(req.Characteristics.CustomColor),
			Filler:           domain.FillerType(strings.ToUpper(strings.TrimSpace(req.Characteristics.Filler))),
			FillerCompressed: req.Characteristics.FillerCompressed,
			WearDegree:       strings.TrimSpace(req.Characteristics.WearDegree),
		}
	}
	if req.StainsDefects != nil {
		out.StainsDefects = &domain.ItemStainsDefects{
			Stains:            trimAll(req.StainsDefects.Stains),
			OtherStainNote:    sanitizeText(req.StainsDefects.OtherStainNote),
			Defects:           trimAll(req.StainsDefects.Defects),
			DefectNotes:       sanitizeText(req.StainsDefects.DefectNotes),
			NoGuaranteeReason: sanitizeText(req.StainsDefects.NoGuaranteeReason),
		}
	}
	if req.Pricing != nil {
		out.Pricing = &services.PricingStepInput{
			ModifierIDs:     trimAll(req.Pricing.ModifierIDs),
			RangeValues:     req.Pricing.RangeValues,
			FixedQuantities: req.Pricing.FixedQuantities,
		}
	}
	if req.Photos != nil {
		photos := &services.PhotosStepInput{
			RemovePhotoID: strings.TrimSpace(req.Photos.RemovePhotoID),
			Skip:          req.Photos.Skip,
			ClearError:    req.Photos.ClearError,
		}
		for _, ref := range req.Photos.AddRefs {
			photos.AddRefs = append(photos.AddRefs, domain.PhotoRef{
				ID:         strings.TrimSpace(ref.ID),
				ObjectName: strings.TrimSpace(ref.ObjectName),
			})
		}
		out.Photos = photos
	}
	if req.Execution != nil {
		execution := &domain.ExecutionParams{
			Tier: domain.ExpediteTier(strings.ToUpper(strings.TrimSpace(req.Execution.Tier))),
		}
		if raw := strings.TrimSpace(req.Execution.ExpectedDate); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return out, fmt.Errorf("expectedDate must be RFC 3339: %w", err)
			}
			execution.ExpectedDate = parsed
		}
		out.Execution = execution
	}
	if req.Discount != nil {
		out.Discount = &domain.DiscountSelection{
			Type:          domain.DiscountType(strings.ToUpper(strings.TrimSpace(req.Discount.Type))),
			CustomPercent: req.Discount.CustomPercent,
			Description:   sanitizeText(req.Discount.Description),
		}
	}
	if req.Payment != nil {
		out.Payment = &domain.PaymentParams{
			Method:     domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Payment.Method))),
			PaidAmount: req.Payment.PaidAmount,
		}
	}
	if req.Additional != nil {
		out.Additional = &domain.AdditionalInfo{
			OrderNotes:         sanitizeText(req.Additional.OrderNotes),
			ClientRequirements: sanitizeText(req.Additional.ClientRequirements),
		}
	}
	return out, nil
}

// snapshotPayload is the wire shape of a wizard snapshot.
type snapshotPayload struct {
	SessionID     string               `json:"sessionId"`
	OrderID       string               `json:"orderId"`
	Stage         string               `json:"stage"`
	Step          string               `json:"step"`
	EditMode      bool                 `json:"editMode,omitempty"`
	CanGoBack     bool                 `json:"canGoBack"`
	CanProceed    bool                 `json:"canProceed"`
	StepCompleted bool                 `json:"stepCompleted"`
	HasErrors     bool                 `json:"hasErrors"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
	Client        *clientInfoPayload   `json:"client,omitempty"`
	Draft         *draftPayload        `json:"draft,omitempty"`
	Items         []itemSummaryPayload `json:"items"`
	Parameters    *parametersPayload   `json:"parameters,omitempty"`
	ItemTotal     float64              `json:"itemTotal"`
	FinalTotal    float64              `json:"finalTotal"`
	LastActivity  string               `json:"lastActivity"`
}

type draftPayload struct {
	ID              string                 `json:"id"`
	BasicInfo       basicInfoPayload       `json:"basicInfo"`
	UnitOfMeasure   string                 `json:"unitOfMeasure,omitempty"`
	Characteristics characteristicsPayload `json:"characteristics"`
	StainsDefects   stainsDefectsPayload   `json:"stainsDefects"`
	BasePrice       float64                `json:"basePrice"`
	ModifierIDs     []string               `json:"modifierIds,omitempty"`
	Breakdown       *breakdownPayload      `json:"breakdown,omitempty"`
	Photos          []photoRefPayload      `json:"photos"`
}

type itemSummaryPayload struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	FinalPrice float64 `json:"finalPrice"`
	PhotoCount int     `json:"photoCount"`
}

type parametersPayload struct {
	ExpectedDate            string   `json:"expectedDate,omitempty"`
	StandardDate            string   `json:"standardDate,omitempty"`
	Tier                    string   `json:"tier,omitempty"`
	DiscountType            string   `json:"discountType,omitempty"`
	DiscountPercent         float64  `json:"discountPercent,omitempty"`
	PaymentMethod           string   `json:"paymentMethod,omitempty"`
	PaidAmount              float64  `json:"paidAmount"`
	Debt                    float64  `json:"debt"`
	OrderNotes              string   `json:"orderNotes,omitempty"`
	ClientRequirements      string   `json:"clientRequirements,omitempty"`
	HasLeatherItems         bool     `json:"hasLeatherItems"`
	HasNonDiscountableItems bool     `json:"hasNonDiscountableItems"`
	Messages                []string `json:"messages,omitempty"`
}

type photoRefPayload struct {
	ID         string `json:"id"`
	ObjectName string `json:"objectName"`
	UploadedAt string `json:"uploadedAt,omitempty"`
	URL        string `json:"url,omitempty"`
}

type breakdownPayload struct {
	BaseUnitPrice  float64             `json:"baseUnitPrice"`
	Quantity       int                 `json:"quantity"`
	Subtotal       float64             `json:"subtotal"`
	Adjustments    []adjustmentPayload `json:"adjustments"`
	Expedite       *adjustmentPayload  `json:"expedite,omitempty"`
	Discount       *adjustmentPayload  `json:"discount,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	FinalPrice     float64             `json:"finalPrice"`
	FinalUnitPrice float64             `json:"finalUnitPrice"`
}

type adjustmentPayload struct {
	ModifierID  string  `json:"modifierId"`
	Name        string  `json:"name"`
	Change      string  `json:"change"`
	PriceBefore float64 `json:"priceBefore"`
	PriceAfter  float64 `json:"priceAfter"`
	Delta       float64 `json:"delta"`
}

func buildSnapshotPayload(snap *services.WizardSnapshot) snapshotPayload {
	out := snapshotPayload{
		SessionID:     snap.SessionID,
		OrderID:       snap.OrderID,
		Stage:         string(snap.Stage),
		Step:          string(snap.Step),
		EditMode:      snap.EditMode,
		CanGoBack:     snap.CanGoBack,
		CanProceed:    snap.CanProceed,
		StepCompleted: snap.StepCompleted,
		HasErrors:     snap.HasErrors,
		ErrorMessage:  snap.ErrorMessage,
		Items:         make([]itemSummaryPayload, 0, len(snap.Items)),
		ItemTotal:     snap.ItemTotal,
		FinalTotal:    snap.FinalTotal,
		LastActivity:  formatTime(snap.LastActivity),
	}
	if snap.Client != nil {
		out.Client = &clientInfoPayload{
			ClientID:     snap.Client.ClientID,
			ClientName:   snap.Client.ClientName,
			ClientPhone:  snap.Client.ClientPhone,
			Branch:       snap.Client.Branch,
			ReceiptLabel: snap.Client.ReceiptLabel,
		}
	}
	if snap.Draft != nil {
		out.Draft = buildDraftPayload(snap.Draft)
	}
	for _, item := range snap.Items {
		out.Items = append(out.Items, itemSummaryPayload{
			ID:         item.ID,
			Category:   string(item.Category),
			Name:       item.Name,
			Quantity:   item.Quantity,
			FinalPrice: item.FinalPrice,
			PhotoCount: item.PhotoCount,
		})
	}
	if snap.Parameters != nil {
		out.Parameters = buildParametersPayload(snap.Parameters)
	}
	return out
}

func buildDraftPayload(draft *domain.ItemDraft) *draftPayload {
	out := &draftPayload{
		ID: draft.ID,
		BasicInfo: basicInfoPayload{
			Category: string(draft.BasicInfo.Category),
			ItemName: draft.BasicInfo.ItemName,
			Quantity: draft.BasicInfo.Quantity,
		},
		UnitOfMeasure: draft.BasicInfo.UnitOfMeasure,
		Characteristics: characteristicsPayload{
			Material:         draft.Characteristics.Material,
			Color:            draft.Characteristics.Color,
			CustomColor:      draft.Characteristics.CustomColor,
			Filler:           string(draft.Characteristics.Filler),
			FillerCompressed: draft.Characteristics.FillerCompressed,
			WearDegree:       draft.Characteristics.WearDegree,
		},
		StainsDefects: stainsDefectsPayload{
			Stains:            draft.StainsDefects.Stains,
			OtherStainNote:    draft.StainsDefects.OtherStainNote,
			Defects:           draft.StainsDefects.Defects,
			DefectNotes:       draft.StainsDefects.DefectNotes,
			NoGuaranteeReason: draft.StainsDefects.NoGuaranteeReason,
		},
		BasePrice:   draft.Pricing.BasePrice,
		ModifierIDs: draft.Pricing.ModifierIDs,
		Photos:      make([]photoRefPayload, 0, len(draft.Photos.Refs)),
	}
	if draft.Pricing.Breakdown != nil {
		out.Breakdown = buildBreakdownPayload(*draft.Pricing.Breakdown)
	}
	for _, ref := range draft.Photos.Refs {
		out.Photos = append(out.Photos, photoRefPayload{
			ID:         ref.ID,
			ObjectName: ref.ObjectName,
			UploadedAt: formatTime(ref.UploadedAt),
		})
	}
	return out
}

func buildParametersPayload(params *domain.OrderParametersState) *parametersPayload {
	return &parametersPayload{
		ExpectedDate:            formatTime(params.Execution.ExpectedDate),
		StandardDate:            formatTime(params.Execution.StandardDate),
		Tier:                    string(params.Execution.Tier),
		DiscountType:            string(params.Discount.Type),
		DiscountPercent:         params.Discount.CustomPercent,
		PaymentMethod:           string(params.Payment.Method),
		PaidAmount:              params.Payment.PaidAmount,
		Debt:                    params.Debt,
		OrderNotes:              params.Additional.OrderNotes,
		ClientRequirements:      params.Additional.ClientRequirements,
		HasLeatherItems:         params.HasLeatherItems,
		HasNonDiscountableItems: params.HasNonDiscountableItems,
		Messages:                params.ValidationMessages,
	}
}

func buildBreakdownPayload(b domain.CalculationBreakdown) *breakdownPayload {
	out := &breakdownPayload{
		BaseUnitPrice:  b.BaseUnitPrice,
		Quantity:       b.Quantity,
		Subtotal:       b.Subtotal,
		Adjustments:    make([]adjustmentPayload, 0, len(b.Adjustments)),
		Warnings:       b.Warnings,
		FinalPrice:     b.FinalPrice,
		FinalUnitPrice: b.FinalUnitPrice,
	}
	for _, adj := range b.Adjustments {
		out.Adjustments = append(out.Adjustments, buildAdjustmentPayload(adj))
	}
	if b.Expedite != nil {
		adj := buildAdjustmentPayload(*b.Expedite)
		out.Expedite = &adj
	}
	if b.Discount != nil {
		adj := buildAdjustmentPayload(*b.Discount)
		out.Discount = &adj
	}
	return out
}

func buildAdjustmentPayload(adj domain.Adjustment) adjustmentPayload {
	return adjustmentPayload{
		ModifierID:  adj.ModifierID,
		Name:        adj.Name,
		Change:      adj.Change,
		PriceBefore: adj.PriceBefore,
		PriceAfter:  adj.PriceAfter,
		Delta:       adj.Delta,
	}
}

func writeWizardError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var valErr *services.ValidationError
	var stateErr *services.StateError
	switch {
	case errors.As(err, &valErr):
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", valErr.Message, http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"step": string(valErr.Step), "field": valErr.Field}))
	case errors.As(err, &stateErr):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "wizard session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCalcDiscountOutOfRange):
		httpx.WriteError(ctx, w, httpx.NewError("discount_out_of_range", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCalcNotExpeditable):
		httpx.WriteError(ctx, w, httpx.NewError("not_expeditable", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCalcInvalidBasePrice):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_base_price", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrWizardInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case services.IsRetryable(err):
		httpx.WriteError(ctx, w, httpx.NewError("wizard_unavailable", "a backing service is unavailable; retry shortly", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxWizardBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func sanitizeText(value string) string {
	return strings.TrimSpace(textPolicy.Sanitize(value))
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
