package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/storefront/internal/models"
)

func TestHasPermission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		user    *models.User
		want    []models.Permission
		wantErr error
	}{
		{"anonymous", nil, []models.Permission{models.PermissionAdmin}, ErrUnauthenticated},
		{"intersection", &models.User{Permissions: models.Permissions{models.PermissionUser, models.PermissionPermissionUpdate}}, []models.Permission{models.PermissionAdmin, models.PermissionPermissionUpdate}, nil},
		{"no intersection", &models.User{Permissions: models.Permissions{models.PermissionUser}}, []models.Permission{models.PermissionAdmin, models.PermissionPermissionUpdate}, ErrForbidden},
		{"empty set", &models.User{}, []models.Permission{models.PermissionUser}, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := HasPermission(tt.user, tt.want...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHasPermission_MessageNamesPermissions(t *testing.T) {
	t.Parallel()
	err := HasPermission(&models.User{Permissions: models.Permissions{models.PermissionUser}}, models.PermissionAdmin)
	assert.ErrorContains(t, err, "ADMIN")
	assert.ErrorContains(t, err, "USER")
}

func TestPublic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.Nil(t, Public(ctx, nil))
	assert.ErrorIs(t, Public(ctx, storeErr(assert.AnError, "item")), errInternal)
	assert.ErrorIs(t, Public(ctx, ErrForbidden), ErrForbidden)
}
