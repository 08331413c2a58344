package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type fakeBookingRepo struct {
	bookings          map[string]*models.Booking
	created           *models.Booking
	deleted           []string
	deleteErr         error
	findApplicantHook func()
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*models.Booking)}
}

func (f *fakeBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	details := make([]models.BookingDetail, 0, len(f.bookings))
	for _, b := range f.bookings {
		details = append(details, models.BookingDetail{Booking: *b})
	}
	return details, len(details), nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	booking, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return booking, nil
}

func (f *fakeBookingRepo) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	booking, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.BookingDetail{Booking: *booking}, nil
}

func (f *fakeBookingRepo) FindByApplicant(ctx context.Context, applicantID string) (*models.Booking, error) {
	if f.findApplicantHook != nil {
		f.findApplicantHook()
	}
	for _, b := range f.bookings {
		if b.ApplicantID == applicantID {
			return b, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	copied := *booking
	f.bookings[booking.ID] = &copied
	f.created = &copied
	return nil
}

func (f *fakeBookingRepo) DeleteByApplication(ctx context.Context, applicationID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, b := range f.bookings {
		if b.ApplicationID == applicationID {
			delete(f.bookings, id)
		}
	}
	f.deleted = append(f.deleted, applicationID)
	return nil
}

func successfulApplication(repo *fakeApplicationRepo) {
	repo.applications["app1"] = &models.Application{
		ID:            "app1",
		ApplicantID:   "a1",
		ProjectID:     "p1",
		PreferredType: models.UnitThreeRoom,
		Status:        models.ApplicationSuccessful,
	}
}

func TestPerformBookingSuccess(t *testing.T) {
	repo := newFakeBookingRepo()
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	detail, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	require.NoError(t, err)
	assert.Equal(t, "app1", detail.ApplicationID)
	assert.Equal(t, "o1", detail.BookedBy)
	assert.Equal(t, models.ApplicationBooked, applications.applications["app1"].Status)
	assert.Contains(t, inventory.reserved, "p1:THREE_ROOM")
}

func TestPerformBookingApplicationNotSuccessful(t *testing.T) {
	repo := newFakeBookingRepo()
	applications := newFakeApplicationRepo()
	applications.applications["app1"] = &models.Application{ID: "app1", ApplicantID: "a1", ProjectID: "p1", PreferredType: models.UnitThreeRoom, Status: models.ApplicationPending}
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestPerformBookingOfficerNotOnRoster(t *testing.T) {
	repo := newFakeBookingRepo()
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	svc := NewBookingService(repo, applications, newFakeInventory(), nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestPerformBookingDuplicate(t *testing.T) {
	repo := newFakeBookingRepo()
	repo.bookings["b1"] = &models.Booking{ID: "b1", ApplicationID: "app0", ApplicantID: "a1", ProjectID: "p1", UnitType: models.UnitThreeRoom}
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateBooking)
	assert.Empty(t, inventory.reserved)
}

func TestPerformBookingPreferenceMismatch(t *testing.T) {
	repo := newFakeBookingRepo()
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitTwoRoom})
	assert.ErrorIs(t, err, appErrors.ErrPreferenceMismatch)
	assert.Empty(t, inventory.reserved)
}

func TestPerformBookingUnitExhausted(t *testing.T) {
	repo := newFakeBookingRepo()
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	inventory.reserveErr = appErrors.Clone(appErrors.ErrUnitUnavailable, "")
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	assert.ErrorIs(t, err, appErrors.ErrUnitUnavailable)
	assert.Nil(t, repo.created)
	assert.Equal(t, models.ApplicationSuccessful, applications.applications["app1"].Status)
}

func TestPerformBookingRollsBackOnStatusFailure(t *testing.T) {
	repo := newFakeBookingRepo()
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	applications.updateStatusErr = sql.ErrConnDone
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	require.Error(t, err)
	assert.Empty(t, repo.bookings)
	assert.Contains(t, inventory.released, "p1:THREE_ROOM")
	assert.Contains(t, repo.deleted, "app1")
}

func TestPerformBookingConcurrentSameApplicant(t *testing.T) {
	repo := newFakeBookingRepo()
	// Widen the window between the duplicate check and the insert so an
	// unserialised implementation would let both callers through.
	repo.findApplicantHook = func() { time.Sleep(20 * time.Millisecond) }
	applications := newFakeApplicationRepo()
	successfulApplication(applications)
	inventory := newFakeInventory()
	inventory.roster["p1:o1"] = true
	svc := NewBookingService(repo, applications, inventory, nil, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, repo.bookings, 1)
	assert.Len(t, inventory.reserved, 1)
}

func TestPerformBookingNoApplication(t *testing.T) {
	svc := NewBookingService(newFakeBookingRepo(), newFakeApplicationRepo(), newFakeInventory(), nil, nil, nil)

	_, err := svc.Perform(context.Background(), "o1", PerformBookingRequest{ApplicantID: "a1", UnitType: models.UnitThreeRoom})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
