// Package repository contains the data access layer for the referral marketplace
package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Hassan-Shakoor/DealShark-BE/models"
	testingutil "github.com/Hassan-Shakoor/DealShark-BE/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserRow(email string) *models.User {
	return &models.User{
		UUID:         uuid.New(),
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: "irrelevant",
		Role:         models.UserRoleCustomer,
	}
}

func TestWithSavepoint(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		userRepo := NewUserRepository(testDB.DB)

		t.Run("TransactionSurvivesUniqueViolation", func(t *testing.T) {
			email := fmt.Sprintf("savepoint.%d@example.com", rand.Intn(100000000))
			freshEmail := fmt.Sprintf("savepoint.fresh.%d@example.com", rand.Intn(100000000))

			existing := testUserRow(email)
			require.NoError(t, userRepo.Save(context.Background(), existing))

			err := WithTransaction(context.Background(), testDB.DB, func(txCtx context.Context) error {
				insertErr := WithSavepoint(txCtx, func() error {
					return userRepo.Save(txCtx, testUserRow(email))
				})
				require.Error(t, insertErr)
				require.True(t, IsUniqueViolation(insertErr))

				// The transaction is still usable after the rollback to the
				// savepoint: the winning row can be re-read and further
				// statements still run
				winner, err := userRepo.ByEmail(txCtx, email)
				require.NoError(t, err)
				require.NotNil(t, winner)
				assert.Equal(t, existing.ID, winner.ID)

				return WithSavepoint(txCtx, func() error {
					return userRepo.Save(txCtx, testUserRow(freshEmail))
				})
			})
			require.NoError(t, err)

			// The work after the violation committed
			fresh, err := userRepo.ByEmail(context.Background(), freshEmail)
			require.NoError(t, err)
			assert.NotNil(t, fresh)
		})

		t.Run("RunsDirectlyWithoutTransaction", func(t *testing.T) {
			email := fmt.Sprintf("savepoint.plain.%d@example.com", rand.Intn(100000000))

			err := WithSavepoint(context.Background(), func() error {
				return userRepo.Save(context.Background(), testUserRow(email))
			})
			require.NoError(t, err)

			row, err := userRepo.ByEmail(context.Background(), email)
			require.NoError(t, err)
			assert.NotNil(t, row)
		})

		return nil
	})
	require.NoError(t, err)
}
