package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type fakeEnquiryRepo struct {
	enquiries map[string]*models.Enquiry
	deleted   []string
}

func newFakeEnquiryRepo() *fakeEnquiryRepo {
	return &fakeEnquiryRepo{enquiries: make(map[string]*models.Enquiry)}
}

func (f *fakeEnquiryRepo) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error) {
	var out []models.Enquiry
	for _, e := range f.enquiries {
		if filter.ApplicantID != "" && e.ApplicantID != filter.ApplicantID {
			continue
		}
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Unanswered && e.Reply != nil {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (f *fakeEnquiryRepo) FindByID(ctx context.Context, id string) (*models.Enquiry, error) {
	enquiry, ok := f.enquiries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *enquiry
	return &copied, nil
}

func (f *fakeEnquiryRepo) Create(ctx context.Context, enquiry *models.Enquiry) error {
	copied := *enquiry
	f.enquiries[enquiry.ID] = &copied
	return nil
}

func (f *fakeEnquiryRepo) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	enquiry, ok := f.enquiries[id]
	if !ok || enquiry.Reply != nil {
		return sql.ErrNoRows
	}
	enquiry.Content = content
	enquiry.UpdatedAt = updatedAt
	return nil
}

func (f *fakeEnquiryRepo) SetReply(ctx context.Context, id, reply, repliedBy string, repliedAt time.Time) error {
	enquiry, ok := f.enquiries[id]
	if !ok || enquiry.Reply != nil {
		return sql.ErrNoRows
	}
	enquiry.Reply = &reply
	enquiry.RepliedBy = &repliedBy
	enquiry.RepliedAt = &repliedAt
	return nil
}

func (f *fakeEnquiryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.enquiries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.enquiries, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func seedEnquiry(repo *fakeEnquiryRepo, id, applicantID, projectID string) *models.Enquiry {
	enquiry := &models.Enquiry{ID: id, ApplicantID: applicantID, ProjectID: projectID, Content: "When is key collection?"}
	repo.enquiries[id] = enquiry
	return enquiry
}

func TestSubmitEnquiry(t *testing.T) {
	repo := newFakeEnquiryRepo()
	projectID := uuid.NewString()
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{projectID: openProject(projectID, "m1")}}
	svc := NewEnquiryService(repo, projects, nil, nil)

	enquiry, err := svc.Submit(context.Background(), "a1", SubmitEnquiryRequest{ProjectID: projectID, Content: "When is key collection?"})
	require.NoError(t, err)
	assert.Equal(t, "a1", enquiry.ApplicantID)
	assert.Contains(t, repo.enquiries, enquiry.ID)
}

func TestSubmitEnquiryUnknownProject(t *testing.T) {
	svc := NewEnquiryService(newFakeEnquiryRepo(), &fakeProjectReader{}, nil, nil)

	_, err := svc.Submit(context.Background(), "a1", SubmitEnquiryRequest{ProjectID: uuid.NewString(), Content: "Hello"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUpdateEnquiryOwnershipAndReplyGuards(t *testing.T) {
	repo := newFakeEnquiryRepo()
	seedEnquiry(repo, "e1", "a1", "p1")
	svc := NewEnquiryService(repo, &fakeProjectReader{}, nil, nil)

	_, err := svc.Update(context.Background(), "a2", "e1", UpdateEnquiryRequest{Content: "Edited"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	enquiry, err := svc.Update(context.Background(), "a1", "e1", UpdateEnquiryRequest{Content: "Edited"})
	require.NoError(t, err)
	assert.Equal(t, "Edited", enquiry.Content)

	reply := "Collection starts in June."
	repo.enquiries["e1"].Reply = &reply
	_, err = svc.Update(context.Background(), "a1", "e1", UpdateEnquiryRequest{Content: "Too late"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestDeleteEnquiryAfterReply(t *testing.T) {
	repo := newFakeEnquiryRepo()
	enquiry := seedEnquiry(repo, "e1", "a1", "p1")
	reply := "Answered."
	enquiry.Reply = &reply
	svc := NewEnquiryService(repo, &fakeProjectReader{}, nil, nil)

	err := svc.Delete(context.Background(), "a1", "e1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestReplyPermissions(t *testing.T) {
	repo := newFakeEnquiryRepo()
	seedEnquiry(repo, "e1", "a1", "p1")
	projects := &fakeProjectReader{
		projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")},
		roster:   map[string]bool{"p1:o1": true},
	}
	svc := NewEnquiryService(repo, projects, nil, nil)

	// Officer not on the roster may not reply.
	_, err := svc.Reply(context.Background(), &models.JWTClaims{UserID: "o2", Role: models.RoleOfficer}, "e1", ReplyEnquiryRequest{Reply: "No."})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	// Manager of a different project may not reply.
	_, err = svc.Reply(context.Background(), &models.JWTClaims{UserID: "m2", Role: models.RoleManager}, "e1", ReplyEnquiryRequest{Reply: "No."})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	enquiry, err := svc.Reply(context.Background(), &models.JWTClaims{UserID: "o1", Role: models.RoleOfficer}, "e1", ReplyEnquiryRequest{Reply: "Collection starts in June."})
	require.NoError(t, err)
	require.NotNil(t, enquiry.Reply)
	assert.Equal(t, "o1", *enquiry.RepliedBy)

	// One reply per enquiry.
	_, err = svc.Reply(context.Background(), &models.JWTClaims{UserID: "m1", Role: models.RoleManager}, "e1", ReplyEnquiryRequest{Reply: "Again."})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestListEnquiriesScopedForApplicants(t *testing.T) {
	repo := newFakeEnquiryRepo()
	seedEnquiry(repo, "e1", "a1", "p1")
	seedEnquiry(repo, "e2", "a2", "p1")
	svc := NewEnquiryService(repo, &fakeProjectReader{}, nil, nil)

	enquiries, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleApplicant}, models.EnquiryFilter{})
	require.NoError(t, err)
	require.Len(t, enquiries, 1)
	assert.Equal(t, "e1", enquiries[0].ID)

	enquiries, _, err = svc.List(context.Background(), &models.JWTClaims{UserID: "m1", Role: models.RoleManager}, models.EnquiryFilter{})
	require.NoError(t, err)
	assert.Len(t, enquiries, 2)
}

func TestGetEnquiryHiddenFromOtherApplicants(t *testing.T) {
	repo := newFakeEnquiryRepo()
	seedEnquiry(repo, "e1", "a1", "p1")
	svc := NewEnquiryService(repo, &fakeProjectReader{}, nil, nil)

	_, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "a2", Role: models.RoleApplicant}, "e1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	enquiry, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "o1", Role: models.RoleOfficer}, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", enquiry.ID)
}
