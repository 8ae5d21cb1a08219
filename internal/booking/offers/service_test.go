package offers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/booking/lifecycle"
	"github.com/stashspace/stashspace/internal/booking/pricing"
	"github.com/stashspace/stashspace/internal/shared"
)

type memoryRepo struct {
	offers        map[int64]*Offer
	spaceAllocs   map[int64][]SpaceAllocation
	serviceAllocs map[int64][]ServiceAllocation
	terms         map[int64][]Term
	summaries     map[int64]*Summary
	bookings      []Booking
	inquiries     map[int64]*InquirySnapshot
	nextID        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		offers:        make(map[int64]*Offer),
		spaceAllocs:   make(map[int64][]SpaceAllocation),
		serviceAllocs: make(map[int64][]ServiceAllocation),
		terms:         make(map[int64][]Term),
		summaries:     make(map[int64]*Summary),
		inquiries:     make(map[int64]*InquirySnapshot),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Offer, error) {
	header, ok := m.offers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	o := *header
	o.SpaceAllocations = append([]SpaceAllocation(nil), m.spaceAllocs[id]...)
	o.ServiceAllocations = append([]ServiceAllocation(nil), m.serviceAllocs[id]...)
	o.Terms = append([]Term(nil), m.terms[id]...)
	if s, ok := m.summaries[id]; ok {
		cp := *s
		o.Summary = &cp
	}
	return &o, nil
}

func (m *memoryRepo) LockHeader(_ context.Context, id int64) (*Offer, error) {
	header, ok := m.offers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	o := *header
	return &o, nil
}

func (m *memoryRepo) InquirySnapshot(_ context.Context, inquiryID int64) (*InquirySnapshot, error) {
	snap, ok := m.inquiries[inquiryID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (m *memoryRepo) Insert(_ context.Context, offer Offer) (int64, error) {
	m.nextID++
	offer.ID = m.nextID
	m.offers[offer.ID] = &offer
	return offer.ID, nil
}

func (m *memoryRepo) UpdateHeader(_ context.Context, id int64, updates map[string]interface{}) error {
	o, ok := m.offers[id]
	if !ok {
		return shared.ErrNotFound
	}
	for key, value := range updates {
		switch key {
		case "total_cost_cents":
			o.TotalCostCents = value.(*int64)
		case "valid_until":
			o.ValidUntil = value.(*time.Time)
		case "notes":
			o.Notes = value.(*string)
		case "status":
			o.Status = value.(lifecycle.Status)
		}
	}
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status lifecycle.Status, validUntil *time.Time, clearValidUntil bool) error {
	o, ok := m.offers[id]
	if !ok {
		return shared.ErrNotFound
	}
	o.Status = status
	if validUntil != nil {
		o.ValidUntil = validUntil
	}
	if clearValidUntil {
		o.ValidUntil = nil
	}
	return nil
}

func (m *memoryRepo) UpdateInquiryStatus(_ context.Context, inquiryID int64, status lifecycle.Status) error {
	snap, ok := m.inquiries[inquiryID]
	if !ok {
		return shared.ErrNotFound
	}
	snap.Status = status
	return nil
}

func (m *memoryRepo) InsertSpaceAllocation(_ context.Context, alloc SpaceAllocation) (int64, error) {
	m.nextID++
	alloc.ID = m.nextID
	m.spaceAllocs[alloc.OfferID] = append(m.spaceAllocs[alloc.OfferID], alloc)
	return alloc.ID, nil
}

func (m *memoryRepo) InsertServiceAllocation(_ context.Context, alloc ServiceAllocation) (int64, error) {
	m.nextID++
	alloc.ID = m.nextID
	m.serviceAllocs[alloc.OfferID] = append(m.serviceAllocs[alloc.OfferID], alloc)
	return alloc.ID, nil
}

func (m *memoryRepo) InsertTerm(_ context.Context, term Term) (int64, error) {
	m.nextID++
	term.ID = m.nextID
	m.terms[term.OfferID] = append(m.terms[term.OfferID], term)
	return term.ID, nil
}

func (m *memoryRepo) DeleteLines(_ context.Context, offerID int64) error {
	delete(m.spaceAllocs, offerID)
	delete(m.serviceAllocs, offerID)
	delete(m.terms, offerID)
	return nil
}

func (m *memoryRepo) UpsertSummary(_ context.Context, summary Summary) error {
	m.summaries[summary.OfferID] = &summary
	return nil
}

func (m *memoryRepo) InsertBooking(_ context.Context, booking Booking) (int64, error) {
	m.nextID++
	booking.ID = m.nextID
	m.bookings = append(m.bookings, booking)
	return booking.ID, nil
}

func (m *memoryRepo) ListDueForExpiry(_ context.Context, now time.Time, limit int) ([]int64, error) {
	var ids []int64
	for id, o := range m.offers {
		if o.Status == lifecycle.StatusOfferSent && o.ValidUntil != nil && o.ValidUntil.Before(now) {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

type fakeOracle struct {
	admins map[int64]bool
	owners map[int64]int64 // inquiry ID -> trader ID
}

func (f *fakeOracle) IsAdministrator(_ context.Context, userID int64) (bool, error) {
	return f.admins[userID], nil
}

func (f *fakeOracle) OwnsInquiry(_ context.Context, userID, inquiryID int64) (bool, error) {
	return f.owners[inquiryID] == userID, nil
}

type captureNotifier struct {
	events []StatusEvent
}

func (c *captureNotifier) StatusChanged(_ context.Context, evt StatusEvent) {
	c.events = append(c.events, evt)
}

type fakeCatalog struct {
	spaces   map[int64]pricing.SpaceInfo
	services map[int64]pricing.ServiceInfo
}

func (f *fakeCatalog) SpaceByID(_ context.Context, id int64) (*pricing.SpaceInfo, error) {
	s, ok := f.spaces[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCatalog) ServiceByID(_ context.Context, id int64) (*pricing.ServiceInfo, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCatalog) ListPricePerM2(_ context.Context, spaceType string) (int64, error) {
	for _, s := range f.spaces {
		if s.SpaceType == spaceType {
			return s.ListPricePerM2Cents, nil
		}
	}
	return 0, shared.ErrNotFound
}

var (
	admin       = authz.Actor{ID: 1, Role: authz.RoleAdministrator}
	trader      = authz.Actor{ID: 7, Role: authz.RoleTrader}
	otherTrader = authz.Actor{ID: 8, Role: authz.RoleTrader}

	fixedNow = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	service  *Service
	repo     *memoryRepo
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	repo.inquiries[100] = &InquirySnapshot{
		ID:                 100,
		TraderID:           trader.ID,
		StartDate:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC),
		Status:             lifecycle.StatusUnderReview,
		EstimatedCostCents: 75_000,
		SpaceRequests:      []pricing.SpaceRequest{{SpaceType: "dry_storage", SizeM2: 50}},
	}
	catalog := &fakeCatalog{
		spaces: map[int64]pricing.SpaceInfo{
			11: {ID: 11, WarehouseID: 1, SpaceType: "dry_storage", ListPricePerM2Cents: 300},
		},
		services: map[int64]pricing.ServiceInfo{
			21: {ID: 21, Name: "Forklift"},
		},
	}
	oracle := &fakeOracle{
		admins: map[int64]bool{admin.ID: true},
		owners: map[int64]int64{100: trader.ID},
	}
	notifier := &captureNotifier{}
	svc := NewService(repo, authz.NewGuard(oracle), catalog, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return &fixture{service: svc, repo: repo, notifier: notifier}
}

func (f *fixture) createDraft(t *testing.T, total *int64) *Offer {
	t.Helper()
	offer, err := f.service.CreateDraft(context.Background(), admin, CreateOfferRequest{
		InquiryID:      100,
		TotalCostCents: total,
		SpaceAllocations: []SpaceAllocationRequest{
			{SpaceID: 11, AllocatedSizeM2: 60},
		},
		Terms: []string{"Payment within 14 days."},
	})
	require.NoError(t, err)
	return offer
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateDraftPricesAndAdvancesInquiry(t *testing.T) {
	f := newFixture(t)

	offer := f.createDraft(t, nil)

	require.Equal(t, lifecycle.StatusOfferDraft, offer.Status)
	require.Len(t, offer.SpaceAllocations, 1)
	// 60 m2 x 300 cents x 5 inclusive days.
	require.Equal(t, int64(90_000), offer.SpaceAllocations[0].OfferTotalCents)
	require.Equal(t, int64(300), offer.SpaceAllocations[0].PricePerM2Cents)
	require.Len(t, offer.Terms, 1)

	require.NotNil(t, offer.Summary)
	require.Equal(t, int64(75_000), offer.Summary.QuotedEstimateCents)
	require.Equal(t, int64(90_000), offer.Summary.CalculatedCents)
	require.Nil(t, offer.Summary.ActualOfferCents)

	require.Equal(t, lifecycle.StatusOfferDraft, f.repo.inquiries[100].Status)
	require.Empty(t, f.notifier.events)
}

func TestCreateDraftRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateDraft(context.Background(), trader, CreateOfferRequest{InquiryID: 100})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestCreateDraftRejectsUnknownSpace(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateDraft(context.Background(), admin, CreateOfferRequest{
		InquiryID:        100,
		SpaceAllocations: []SpaceAllocationRequest{{SpaceID: 999, AllocatedSizeM2: 10}},
	})
	require.ErrorIs(t, err, shared.ErrReferential)
	require.Contains(t, err.Error(), "999")
}

func TestSendStampsValidityAndNotifiesTrader(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))

	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

	sent, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusOfferSent, sent.Status)
	require.NotNil(t, sent.ValidUntil)
	require.Equal(t, fixedNow.Add(lifecycle.OfferValidity), *sent.ValidUntil)
	require.Equal(t, lifecycle.StatusOfferSent, f.repo.inquiries[100].Status)

	require.Len(t, f.notifier.events, 1)
	evt := f.notifier.events[0]
	require.Equal(t, trader.ID, evt.TraderID)
	require.Equal(t, lifecycle.StatusOfferSent, evt.Status)
	require.NotNil(t, evt.TotalCostCents)
	require.Equal(t, int64(88_000), *evt.TotalCostCents)
}

func TestSendIsIdempotent(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))

	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

	require.Len(t, f.notifier.events, 1)
}

func TestSendRequiresHeadlineTotal(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, nil)

	err := f.service.Send(context.Background(), admin, offer.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "actual_offer_cents")

	unsent, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusOfferDraft, unsent.Status)
	require.Nil(t, unsent.ValidUntil)
}

func TestSendRequiresFullCoverage(t *testing.T) {
	f := newFixture(t)
	offer, err := f.service.CreateDraft(context.Background(), admin, CreateOfferRequest{
		InquiryID:      100,
		TotalCostCents: int64Ptr(10_000),
		SpaceAllocations: []SpaceAllocationRequest{
			{SpaceID: 11, AllocatedSizeM2: 20}, // inquiry asked for 50
		},
	})
	require.NoError(t, err)

	err = f.service.Send(context.Background(), admin, offer.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "allocated")
}

func TestAcceptCreatesBooking(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

	require.NoError(t, f.service.Respond(context.Background(), trader, offer.ID, ActionAccept))

	accepted, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusAccepted, accepted.Status)
	require.Equal(t, lifecycle.StatusAccepted, f.repo.inquiries[100].Status)

	require.Len(t, f.repo.bookings, 1)
	booking := f.repo.bookings[0]
	require.Equal(t, offer.ID, booking.OfferID)
	require.Equal(t, int64(100), booking.InquiryID)
	require.Equal(t, trader.ID, booking.TraderID)
	require.Equal(t, int64(88_000), booking.TotalCostCents)
	require.Equal(t, f.repo.inquiries[100].StartDate, booking.StartDate)

	// sent + accepted
	require.Len(t, f.notifier.events, 2)
	require.Equal(t, lifecycle.StatusAccepted, f.notifier.events[1].Status)
}

func TestRejectAndRequestChangesCreateNoBooking(t *testing.T) {
	for _, tc := range []struct {
		action RespondAction
		want   lifecycle.Status
	}{
		{ActionReject, lifecycle.StatusRejected},
		{ActionRequestChanges, lifecycle.StatusChangesRequested},
	} {
		t.Run(string(tc.action), func(t *testing.T) {
			f := newFixture(t)
			offer := f.createDraft(t, int64Ptr(88_000))
			require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

			require.NoError(t, f.service.Respond(context.Background(), trader, offer.ID, tc.action))

			got, err := f.repo.Get(context.Background(), offer.ID)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Status)
			require.Empty(t, f.repo.bookings)
		})
	}
}

func TestRespondDeniedForNonOwner(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

	err := f.service.Respond(context.Background(), otherTrader, offer.ID, ActionAccept)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestRespondHidesMissingOffers(t *testing.T) {
	f := newFixture(t)

	err := f.service.Respond(context.Background(), trader, 12345, ActionAccept)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	require.False(t, errors.Is(err, shared.ErrNotFound))
}

func TestRespondRejectsDraftOffers(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))

	err := f.service.Respond(context.Background(), trader, offer.ID, ActionAccept)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestReplaceDraftSwapsAllLines(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, nil)

	replaced, err := f.service.ReplaceDraft(context.Background(), admin, offer.ID, ReplaceOfferRequest{
		TotalCostCents: int64Ptr(95_000),
		SpaceAllocations: []SpaceAllocationRequest{
			{SpaceID: 11, AllocatedSizeM2: 55, PricePerM2Cents: 280, IsManualPrice: true, OfferTotalCents: 77_000},
		},
		ServiceAllocations: []ServiceAllocationRequest{
			{ServiceID: 21, PricingType: pricing.PricingFixed, FixedPriceCents: int64Ptr(5_000)},
		},
		Terms: []string{"Revised terms."},
	})
	require.NoError(t, err)

	require.Len(t, replaced.SpaceAllocations, 1)
	require.Equal(t, int64(77_000), replaced.SpaceAllocations[0].OfferTotalCents)
	require.True(t, replaced.SpaceAllocations[0].IsManualPrice)
	require.Len(t, replaced.ServiceAllocations, 1)
	require.Equal(t, int64(5_000), replaced.ServiceAllocations[0].OfferTotalCents)
	require.NotNil(t, replaced.Summary)
	require.Equal(t, int64(82_000), replaced.Summary.CalculatedCents)
	require.Equal(t, int64(95_000), *replaced.Summary.ActualOfferCents)
}

func TestReplaceDraftIsIdempotent(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, nil)

	req := ReplaceOfferRequest{
		TotalCostCents: int64Ptr(95_000),
		SpaceAllocations: []SpaceAllocationRequest{
			{SpaceID: 11, AllocatedSizeM2: 55, PricePerM2Cents: 280, IsManualPrice: true, OfferTotalCents: 77_000},
		},
		ServiceAllocations: []ServiceAllocationRequest{
			{ServiceID: 21, PricingType: pricing.PricingFixed, FixedPriceCents: int64Ptr(5_000)},
		},
		Terms: []string{"Revised terms."},
	}

	_, err := f.service.ReplaceDraft(context.Background(), admin, offer.ID, req)
	require.NoError(t, err)
	first, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)

	_, err = f.service.ReplaceDraft(context.Background(), admin, offer.ID, req)
	require.NoError(t, err)
	second, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)

	require.Equal(t, stripRowIDs(first), stripRowIDs(second))
	require.Equal(t, *first.Summary, *second.Summary)
}

// stripRowIDs zeroes generated line ids so two persisted states can be
// compared structurally.
func stripRowIDs(o *Offer) *Offer {
	cp := *o
	cp.SpaceAllocations = append([]SpaceAllocation(nil), o.SpaceAllocations...)
	for i := range cp.SpaceAllocations {
		cp.SpaceAllocations[i].ID = 0
	}
	cp.ServiceAllocations = append([]ServiceAllocation(nil), o.ServiceAllocations...)
	for i := range cp.ServiceAllocations {
		cp.ServiceAllocations[i].ID = 0
	}
	cp.Terms = append([]Term(nil), o.Terms...)
	for i := range cp.Terms {
		cp.Terms[i].ID = 0
	}
	return &cp
}

func TestReplaceDraftRedraftsAfterChangesRequested(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))
	require.NoError(t, f.service.Respond(context.Background(), trader, offer.ID, ActionRequestChanges))

	replaced, err := f.service.ReplaceDraft(context.Background(), admin, offer.ID, ReplaceOfferRequest{
		TotalCostCents: int64Ptr(80_000),
		SpaceAllocations: []SpaceAllocationRequest{
			{SpaceID: 11, AllocatedSizeM2: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusOfferDraft, replaced.Status)
	require.Equal(t, lifecycle.StatusOfferDraft, f.repo.inquiries[100].Status)
}

func TestReplaceDraftRejectsSentOffers(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

	_, err := f.service.ReplaceDraft(context.Background(), admin, offer.ID, ReplaceOfferRequest{
		SpaceAllocations: []SpaceAllocationRequest{{SpaceID: 11, AllocatedSizeM2: 50}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestGetFiltersByRole(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, nil)

	got, err := f.service.Get(context.Background(), admin, offer.ID)
	require.NoError(t, err)
	require.Equal(t, offer.ID, got.ID)

	got, err = f.service.Get(context.Background(), trader, offer.ID)
	require.NoError(t, err)
	require.Equal(t, offer.ID, got.ID)

	_, err = f.service.Get(context.Background(), otherTrader, offer.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestExpireDueSweepsSentOffers(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))

	// Move the clock one day past the validity window.
	f.service.now = func() time.Time { return fixedNow.Add(lifecycle.OfferValidity + 24*time.Hour) }

	expired, err := f.service.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusExpired, got.Status)
	require.Nil(t, got.ValidUntil)
	require.Equal(t, lifecycle.StatusExpired, f.repo.inquiries[100].Status)

	require.Equal(t, lifecycle.StatusExpired, f.notifier.events[len(f.notifier.events)-1].Status)
}

func TestExpireDueSkipsRespondedOffers(t *testing.T) {
	f := newFixture(t)
	offer := f.createDraft(t, int64Ptr(88_000))
	require.NoError(t, f.service.Send(context.Background(), admin, offer.ID))
	require.NoError(t, f.service.Respond(context.Background(), trader, offer.ID, ActionAccept))

	f.service.now = func() time.Time { return fixedNow.Add(lifecycle.OfferValidity + 24*time.Hour) }

	expired, err := f.service.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	require.Zero(t, expired)

	got, err := f.repo.Get(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusAccepted, got.Status)
}
