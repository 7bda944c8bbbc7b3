package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/pureclean/api/internal/domain"
	platformfs "github.com/pureclean/api/internal/platform/firestore"
	"github.com/pureclean/api/internal/services"
)

const (
	defaultSessionCollection   = "wizard_sessions"
	defaultOrderCollection     = "orders"
	defaultPriceListCollection = "price_list"
	defaultReferenceCollection = "reference_lists"
	defaultCounterCollection   = "counters"

	defaultSessionTTL = 4 * time.Hour
)

// FirestoreSessionStore persists wizard sessions in Firestore so a session
// survives instance restarts and can be served by any replica.
type FirestoreSessionStore struct {
	provider   *platformfs.Provider
	collection string
	ttl        time.Duration
}

// sessionDoc wraps the session with an expiry timestamp so a Firestore TTL
// policy on expires_at reaps abandoned sessions.
type sessionDoc struct {
	Session   *domain.WizardSession `firestore:"session"`
	ExpiresAt time.Time             `firestore:"expires_at"`
}

// SessionStoreOption customises the session store.
type SessionStoreOption func(*FirestoreSessionStore)

// WithSessionTTL sets how long an idle session stays alive. Each save pushes
// the expiry forward from the session's last activity.
func WithSessionTTL(ttl time.Duration) SessionStoreOption {
	return func(s *FirestoreSessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewFirestoreSessionStore constructs a store over the given provider.
func NewFirestoreSessionStore(provider *platformfs.Provider, collection string, opts ...SessionStoreOption) (*FirestoreSessionStore, error) {
	if provider == nil {
		return nil, errors.New("firestore sessions: provider is required")
	}
	if collection == "" {
		collection = defaultSessionCollection
	}
	store := &FirestoreSessionStore{provider: provider, collection: collection, ttl: defaultSessionTTL}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (s *FirestoreSessionStore) docFor(session *domain.WizardSession) sessionDoc {
	anchor := session.LastActivity
	if anchor.IsZero() {
		anchor = time.Now().UTC()
	}
	return sessionDoc{Session: session, ExpiresAt: anchor.Add(s.ttl)}
}

func (s *FirestoreSessionStore) Create(ctx context.Context, session *domain.WizardSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", services.ErrWizardInvalidInput)
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return platformfs.WrapError("sessions.create", err)
	}
	if _, err := client.Collection(s.collection).Doc(session.ID).Create(ctx, s.docFor(session)); err != nil {
		return platformfs.WrapError("sessions.create", err)
	}
	return nil
}

func (s *FirestoreSessionStore) Get(ctx context.Context, id string) (*domain.WizardSession, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, platformfs.WrapError("sessions.get", err)
	}
	doc, err := client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		wrapped := platformfs.WrapError("sessions.get", err)
		var repoErr *platformfs.Error
		if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
			return nil, services.ErrSessionNotFound
		}
		return nil, wrapped
	}
	var stored sessionDoc
	if err := doc.DataTo(&stored); err != nil {
		return nil, platformfs.WrapError("sessions.decode", err)
	}
	if stored.Session == nil {
		return nil, services.ErrSessionNotFound
	}
	if !stored.ExpiresAt.IsZero() && time.Now().After(stored.ExpiresAt) {
		// TTL reaping is eventual; treat an expired doc as gone.
		return nil, services.ErrSessionNotFound
	}
	return stored.Session, nil
}

func (s *FirestoreSessionStore) Save(ctx context.Context, session *domain.WizardSession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", services.ErrWizardInvalidInput)
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return platformfs.WrapError("sessions.save", err)
	}
	if _, err := client.Collection(s.collection).Doc(session.ID).Set(ctx, s.docFor(session)); err != nil {
		return platformfs.WrapError("sessions.save", err)
	}
	return nil
}

func (s *FirestoreSessionStore) Delete(ctx context.Context, id string) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return platformfs.WrapError("sessions.delete", err)
	}
	if _, err := client.Collection(s.collection).Doc(id).Delete(ctx); err != nil {
		return platformfs.WrapError("sessions.delete", err)
	}
	return nil
}

// FirestoreOrderRepository persists committed orders.
type FirestoreOrderRepository struct {
	provider   *platformfs.Provider
	collection string
}

// NewFirestoreOrderRepository constructs a repository over the given provider.
func NewFirestoreOrderRepository(provider *platformfs.Provider, collection string) (*FirestoreOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore orders: provider is required")
	}
	if collection == "" {
		collection = defaultOrderCollection
	}
	return &FirestoreOrderRepository{provider: provider, collection: collection}, nil
}

// orderCounterDoc tracks the last issued receipt number.
type orderCounterDoc struct {
	Value int64 `firestore:"value"`
}

func (r *FirestoreOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("firestore orders: order id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return platformfs.WrapError("orders.save", err)
	}
	orderRef := client.Collection(r.collection).Doc(order.ID)
	counterRef := client.Collection(defaultCounterCollection).Doc(r.collection)
	// Receipt number allocation and the order write commit atomically, and
	// orders are immutable once committed: a retried confirm keeps the
	// number it was first given instead of overwriting the earlier commit.
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Get(orderRef)
		if err == nil {
			var stored domain.Order
			if err := existing.DataTo(&stored); err != nil {
				return err
			}
			order.Number = stored.Number
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return err
		}
		var counter orderCounterDoc
		counterSnap, err := tx.Get(counterRef)
		switch {
		case err == nil:
			if err := counterSnap.DataTo(&counter); err != nil {
				return err
			}
		case status.Code(err) == codes.NotFound:
			counter.Value = 0
		default:
			return err
		}
		counter.Value++
		order.Number = counter.Value
		if err := tx.Set(counterRef, counter); err != nil {
			return err
		}
		return tx.Create(orderRef, order)
	})
}

func (r *FirestoreOrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, platformfs.WrapError("orders.get", err)
	}
	doc, err := client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		wrapped := platformfs.WrapError("orders.get", err)
		var repoErr *platformfs.Error
		if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
			return nil, services.ErrOrderNotFound
		}
		return nil, wrapped
	}
	var order domain.Order
	if err := doc.DataTo(&order); err != nil {
		return nil, platformfs.WrapError("orders.decode", err)
	}
	return &order, nil
}

// priceListDoc is the Firestore document shape of one price-list entry.
type priceListDoc struct {
	Category       string  `firestore:"category"`
	Name           string  `firestore:"name"`
	BasePrice      float64 `firestore:"basePrice"`
	UnitOfMeasure  string  `firestore:"unitOfMeasure"`
	PhotosOptional bool    `firestore:"photosOptional"`
	SortOrder      int     `firestore:"sortOrder"`
}

// referenceListDoc is the Firestore document shape of one category's
// reference lists, keyed by category code.
type referenceListDoc struct {
	Materials []referenceEntryDoc `firestore:"materials"`
	Colors    []referenceEntryDoc `firestore:"colors"`
	Stains    []referenceEntryDoc `firestore:"stains"`
	Defects   []referenceEntryDoc `firestore:"defects"`
}

type referenceEntryDoc struct {
	Code  string `firestore:"code"`
	Label string `firestore:"label"`
}

// FirestorePriceList reads the price list and reference data from Firestore.
type FirestorePriceList struct {
	provider            *platformfs.Provider
	priceCollection     string
	referenceCollection string
}

// NewFirestorePriceList constructs a price list over the given provider.
func NewFirestorePriceList(provider *platformfs.Provider, priceCollection, referenceCollection string) (*FirestorePriceList, error) {
	if provider == nil {
		return nil, errors.New("firestore price list: provider is required")
	}
	if priceCollection == "" {
		priceCollection = defaultPriceListCollection
	}
	if referenceCollection == "" {
		referenceCollection = defaultReferenceCollection
	}
	return &FirestorePriceList{
		provider:            provider,
		priceCollection:     priceCollection,
		referenceCollection: referenceCollection,
	}, nil
}

func (l *FirestorePriceList) Categories(ctx context.Context) ([]domain.CategoryCode, error) {
	items, err := l.allItems(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.CategoryCode]struct{})
	var categories []domain.CategoryCode
	for _, item := range items {
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		categories = append(categories, item.Category)
	}
	return categories, nil
}

func (l *FirestorePriceList) ItemsForCategory(ctx context.Context, category domain.CategoryCode) ([]domain.CatalogItem, error) {
	client, err := l.provider.Client(ctx)
	if err != nil {
		return nil, platformfs.WrapError("pricelist.items", err)
	}
	iter := client.Collection(l.priceCollection).
		Where("category", "==", string(category)).
		OrderBy("sortOrder", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var items []domain.CatalogItem
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, platformfs.WrapError("pricelist.items", err)
		}
		var entry priceListDoc
		if err := doc.DataTo(&entry); err != nil {
			return nil, platformfs.WrapError("pricelist.decode", err)
		}
		items = append(items, catalogItemFromDoc(entry))
	}
	return items, nil
}

func (l *FirestorePriceList) FindItem(ctx context.Context, category domain.CategoryCode, name string) (domain.CatalogItem, bool, error) {
	client, err := l.provider.Client(ctx)
	if err != nil {
		return domain.CatalogItem{}, false, platformfs.WrapError("pricelist.find", err)
	}
	iter := client.Collection(l.priceCollection).
		Where("category", "==", string(category)).
		Where("name", "==", name).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.CatalogItem{}, false, nil
	}
	if err != nil {
		return domain.CatalogItem{}, false, platformfs.WrapError("pricelist.find", err)
	}
	var entry priceListDoc
	if err := doc.DataTo(&entry); err != nil {
		return domain.CatalogItem{}, false, platformfs.WrapError("pricelist.decode", err)
	}
	return catalogItemFromDoc(entry), true, nil
}

func (l *FirestorePriceList) ReferenceLists(ctx context.Context, category domain.CategoryCode) (domain.ReferenceLists, error) {
	client, err := l.provider.Client(ctx)
	if err != nil {
		return domain.ReferenceLists{}, platformfs.WrapError("reference.lists", err)
	}
	doc, err := client.Collection(l.referenceCollection).Doc(string(category)).Get(ctx)
	if err != nil {
		wrapped := platformfs.WrapError("reference.lists", err)
		var repoErr *platformfs.Error
		if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
			return domain.ReferenceLists{}, nil
		}
		return domain.ReferenceLists{}, wrapped
	}
	var lists referenceListDoc
	if err := doc.DataTo(&lists); err != nil {
		return domain.ReferenceLists{}, platformfs.WrapError("reference.decode", err)
	}
	return domain.ReferenceLists{
		Materials: entriesFromDocs(lists.Materials),
		Colors:    entriesFromDocs(lists.Colors),
		Stains:    entriesFromDocs(lists.Stains),
		Defects:   entriesFromDocs(lists.Defects),
	}, nil
}

func (l *FirestorePriceList) allItems(ctx context.Context) ([]domain.CatalogItem, error) {
	client, err := l.provider.Client(ctx)
	if err != nil {
		return nil, platformfs.WrapError("pricelist.all", err)
	}
	iter := client.Collection(l.priceCollection).OrderBy("sortOrder", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var items []domain.CatalogItem
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, platformfs.WrapError("pricelist.all", err)
		}
		var entry priceListDoc
		if err := doc.DataTo(&entry); err != nil {
			return nil, platformfs.WrapError("pricelist.decode", err)
		}
		items = append(items, catalogItemFromDoc(entry))
	}
	return items, nil
}

func catalogItemFromDoc(doc priceListDoc) domain.CatalogItem {
	return domain.CatalogItem{
		Category:       domain.CategoryCode(doc.Category),
		Name:           doc.Name,
		BasePrice:      doc.BasePrice,
		UnitOfMeasure:  doc.UnitOfMeasure,
		PhotosOptional: doc.PhotosOptional,
	}
}

func entriesFromDocs(docs []referenceEntryDoc) []domain.ReferenceEntry {
	out := make([]domain.ReferenceEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.ReferenceEntry{Code: d.Code, Label: d.Label})
	}
	return out
}
