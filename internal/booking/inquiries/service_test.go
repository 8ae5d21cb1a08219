package inquiries

import (
	"context"
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
	inquiries map[int64]*Inquiry
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{inquiries: make(map[int64]*Inquiry)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Inquiry, error) {
	q, ok := m.inquiries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *q
	cp.SpaceRequests = append([]SpaceRequest(nil), q.SpaceRequests...)
	cp.ServiceRequests = append([]ServiceRequest(nil), q.ServiceRequests...)
	return &cp, nil
}

func (m *memoryRepo) List(_ context.Context, filter Filter) ([]Inquiry, error) {
	var out []Inquiry
	for _, q := range m.inquiries {
		if filter.TraderID != nil && q.TraderID != *filter.TraderID {
			continue
		}
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (m *memoryRepo) Insert(_ context.Context, inquiry Inquiry) (int64, error) {
	m.nextID++
	inquiry.ID = m.nextID
	m.inquiries[inquiry.ID] = &inquiry
	return inquiry.ID, nil
}

func (m *memoryRepo) UpdateHeader(_ context.Context, id int64, updates map[string]interface{}) error {
	q, ok := m.inquiries[id]
	if !ok {
		return shared.ErrNotFound
	}
	for key, value := range updates {
		switch key {
		case "start_date":
			q.StartDate = value.(time.Time)
		case "end_date":
			q.EndDate = value.(time.Time)
		case "notes":
			q.Notes = value.(*string)
		case "estimated_cost_cents":
			q.EstimatedCostCents = value.(int64)
		case "status":
			q.Status = value.(lifecycle.Status)
		}
	}
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status lifecycle.Status) error {
	q, ok := m.inquiries[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *memoryRepo) ReplaceRequests(_ context.Context, inquiryID int64, spaces []SpaceRequest, services []ServiceRequest) error {
	q, ok := m.inquiries[inquiryID]
	if !ok {
		return shared.ErrNotFound
	}
	q.SpaceRequests = spaces
	q.ServiceRequests = services
	return nil
}

type fakeOracle struct {
	admins map[int64]bool
	repo   *memoryRepo
}

func (f *fakeOracle) IsAdministrator(_ context.Context, userID int64) (bool, error) {
	return f.admins[userID], nil
}

func (f *fakeOracle) OwnsInquiry(_ context.Context, userID, inquiryID int64) (bool, error) {
	q, ok := f.repo.inquiries[inquiryID]
	return ok && q.TraderID == userID, nil
}

type captureNotifier struct {
	events []StatusEvent
}

func (c *captureNotifier) StatusChanged(_ context.Context, evt StatusEvent) {
	c.events = append(c.events, evt)
}

type fakeCatalog struct {
	listPrices map[string]int64
	services   map[int64]pricing.ServiceInfo
}

func (f *fakeCatalog) SpaceByID(_ context.Context, id int64) (*pricing.SpaceInfo, error) {
	return nil, shared.ErrNotFound
}

func (f *fakeCatalog) ServiceByID(_ context.Context, id int64) (*pricing.ServiceInfo, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCatalog) ListPricePerM2(_ context.Context, spaceType string) (int64, error) {
	price, ok := f.listPrices[spaceType]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return price, nil
}

var (
	admin       = authz.Actor{ID: 1, Role: authz.RoleAdministrator}
	trader      = authz.Actor{ID: 7, Role: authz.RoleTrader}
	otherTrader = authz.Actor{ID: 8, Role: authz.RoleTrader}

	jan1 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan5 = time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	service  *Service
	repo     *memoryRepo
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	catalog := &fakeCatalog{
		listPrices: map[string]int64{"dry_storage": 500},
		services:   map[int64]pricing.ServiceInfo{21: {ID: 21, Name: "Forklift"}},
	}
	oracle := &fakeOracle{admins: map[int64]bool{admin.ID: true}, repo: repo}
	notifier := &captureNotifier{}
	svc := NewService(repo, authz.NewGuard(oracle), catalog, notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &fixture{service: svc, repo: repo, notifier: notifier}
}

func (f *fixture) create(t *testing.T) *Inquiry {
	t.Helper()
	inquiry, err := f.service.Create(context.Background(), trader, CreateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
		ServiceIDs:    []int64{21},
	})
	require.NoError(t, err)
	return inquiry
}

func TestCreateEstimatesFromListPrices(t *testing.T) {
	f := newFixture(t)

	inquiry := f.create(t)

	require.Equal(t, lifecycle.StatusDraft, inquiry.Status)
	require.Equal(t, trader.ID, inquiry.TraderID)
	// 50 m2 x 500 cents x 5 inclusive days.
	require.Equal(t, int64(125_000), inquiry.EstimatedCostCents)
	require.Len(t, inquiry.SpaceRequests, 1)
	require.Len(t, inquiry.ServiceRequests, 1)
	require.Empty(t, f.notifier.events)
}

func TestCreateRejectsUnknownService(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), trader, CreateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
		ServiceIDs:    []int64{999},
	})
	require.ErrorIs(t, err, shared.ErrReferential)
	require.Contains(t, err.Error(), "999")
}

func TestCreateRejectsAdmins(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), admin, CreateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
	})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestCreateRejectsReversedDates(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), trader, CreateInquiryRequest{
		StartDate:     jan5,
		EndDate:       jan1,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateRecomputesEstimate(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)

	updated, err := f.service.Update(context.Background(), trader, inquiry.ID, UpdateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan1, // single day
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 80}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(40_000), updated.EstimatedCostCents)
	require.Empty(t, updated.ServiceRequests)
}

func TestUpdateDeniedForNonOwner(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)

	_, err := f.service.Update(context.Background(), otherTrader, inquiry.ID, UpdateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
	})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUpdateRejectedOnceSubmittedForTrader(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)
	require.NoError(t, f.service.Submit(context.Background(), trader, inquiry.ID))

	_, err := f.service.Update(context.Background(), trader, inquiry.ID, UpdateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// An administrator may still adjust it while it is in their court.
	_, err = f.service.Update(context.Background(), admin, inquiry.ID, UpdateInquiryRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 60}},
	})
	require.NoError(t, err)
}

func TestSubmitNotifiesAdministrators(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)

	require.NoError(t, f.service.Submit(context.Background(), trader, inquiry.ID))

	require.Equal(t, lifecycle.StatusSubmitted, f.repo.inquiries[inquiry.ID].Status)
	require.Len(t, f.notifier.events, 1)
	require.Equal(t, lifecycle.StatusSubmitted, f.notifier.events[0].Status)
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)

	require.NoError(t, f.service.Submit(context.Background(), trader, inquiry.ID))
	require.NoError(t, f.service.Submit(context.Background(), trader, inquiry.ID))

	require.Len(t, f.notifier.events, 1)
}

func TestTraderCannotStartReview(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)
	require.NoError(t, f.service.Submit(context.Background(), trader, inquiry.ID))

	err := f.service.StartReview(context.Background(), trader, inquiry.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	require.NoError(t, f.service.StartReview(context.Background(), admin, inquiry.ID))
	require.Equal(t, lifecycle.StatusUnderReview, f.repo.inquiries[inquiry.ID].Status)
}

func TestCancelFollowsTransitionTable(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)

	// Trader may cancel a draft.
	require.NoError(t, f.service.Cancel(context.Background(), trader, inquiry.ID))
	require.Equal(t, lifecycle.StatusCancelled, f.repo.inquiries[inquiry.ID].Status)

	// Cancelled is terminal for the trader.
	second := f.create(t)
	require.NoError(t, f.service.Submit(context.Background(), trader, second.ID))
	err := f.service.Cancel(context.Background(), trader, second.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	// But the administrator may cancel a submitted inquiry.
	require.NoError(t, f.service.Cancel(context.Background(), admin, second.ID))
}

func TestAdminClosesOutLifecycle(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)
	f.repo.inquiries[inquiry.ID].Status = lifecycle.StatusAccepted

	require.NoError(t, f.service.Confirm(context.Background(), admin, inquiry.ID))
	require.NoError(t, f.service.Complete(context.Background(), admin, inquiry.ID))
	require.NoError(t, f.service.Archive(context.Background(), admin, inquiry.ID))
	require.Equal(t, lifecycle.StatusArchived, f.repo.inquiries[inquiry.ID].Status)

	// confirmed and completed notify the trader; archived does not.
	require.Len(t, f.notifier.events, 2)
}

func TestGetHidesForeignInquiries(t *testing.T) {
	f := newFixture(t)
	inquiry := f.create(t)

	_, err := f.service.Get(context.Background(), otherTrader, inquiry.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := f.service.Get(context.Background(), admin, inquiry.ID)
	require.NoError(t, err)
	require.Equal(t, inquiry.ID, got.ID)
}

func TestListScopesTraders(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	f.repo.inquiries[99] = &Inquiry{ID: 99, TraderID: otherTrader.ID, Status: lifecycle.StatusDraft}

	mine, err := f.service.List(context.Background(), trader, Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, trader.ID, mine[0].TraderID)

	all, err := f.service.List(context.Background(), admin, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestEstimateWithoutPersisting(t *testing.T) {
	f := newFixture(t)

	resp, err := f.service.Estimate(context.Background(), EstimateRequest{
		StartDate:     jan1,
		EndDate:       jan5,
		SpaceRequests: []SpaceRequestInput{{SpaceType: "dry_storage", SizeM2: 50}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(125_000), resp.EstimatedCostCents)
	require.Equal(t, int64(5), resp.DurationDays)
	require.Empty(t, f.repo.inquiries)
}
