package repository_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmachain/pharmachain-backend/internal/party/repository"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/pharmachain/pharmachain-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	if err := suite.ApplyMigrations(ctx, repository.Migrations()); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func newParty(role string) *repository.Party {
	return &repository.Party{
		Name:         "Test " + role,
		Email:        fmt.Sprintf("%s@example.com", uuid.New().String()),
		PasswordHash: "$2a$04$notarealhashbutitfitsthecolumn",
		Role:         role,
		Active:       true,
	}
}

func TestPartyRepository_CreateAndGet(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewPartyRepository(suite.DB)

	party := newParty("supplier")
	require.NoError(t, repo.Create(ctx, party))
	assert.NotEmpty(t, party.ID)
	assert.False(t, party.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, party.ID)
	require.NoError(t, err)
	assert.Equal(t, party.Email, byID.Email)

	byEmail, err := repo.GetByEmail(ctx, party.Email)
	require.NoError(t, err)
	assert.Equal(t, party.ID, byEmail.ID)
}

func TestPartyRepository_DuplicateEmail(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewPartyRepository(suite.DB)

	party := newParty("pharmacy")
	require.NoError(t, repo.Create(ctx, party))

	dup := newParty("pharmacy")
	dup.Email = party.Email
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestPartyRepository_InvalidRole(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewPartyRepository(suite.DB)

	party := newParty("wizard")
	err := repo.Create(ctx, party)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestPartyRepository_SetActive(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewPartyRepository(suite.DB)

	party := newParty("distributor")
	require.NoError(t, repo.Create(ctx, party))

	require.NoError(t, repo.SetActive(ctx, party.ID, false))

	reloaded, err := repo.GetByID(ctx, party.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Active)

	// Unknown parties are reported, not silently ignored.
	err = repo.SetActive(ctx, uuid.New().String(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPartyRepository_Update(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewPartyRepository(suite.DB)

	party := newParty("manufacturer")
	require.NoError(t, repo.Create(ctx, party))

	org := "Acme Holdings"
	party.Name = "Acme Pharma GmbH"
	party.Organization = &org
	require.NoError(t, repo.Update(ctx, party))

	reloaded, err := repo.GetByID(ctx, party.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Pharma GmbH", reloaded.Name)
	require.NotNil(t, reloaded.Organization)
	assert.Equal(t, "Acme Holdings", *reloaded.Organization)
}

func TestPartyRepository_List_FiltersByRole(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()

	repo := repository.NewPartyRepository(suite.DB)

	created := newParty("supplier")
	require.NoError(t, repo.Create(ctx, created))

	suppliers, err := repo.List(ctx, "supplier", 100, 0)
	require.NoError(t, err)

	var found bool
	for _, p := range suppliers {
		assert.Equal(t, "supplier", p.Role)
		if p.ID == created.ID {
			found = true
		}
	}
	assert.True(t, found)
}
