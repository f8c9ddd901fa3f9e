// internal/services/admin_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseloom/loom-backend/internal/models"
)

func TestDisableTemplateRequiresAdmin(t *testing.T) {
	db := newTestDB(t)
	admin := NewAdminService(db, nil)

	owner := createTestUser(t, db, models.UserTypeCreator)
	member := createTestUser(t, db, models.UserTypeMember)
	template := createTestTemplate(t, db, owner.ID, 100)

	_, err := admin.DisableTemplate(member.ID, template.ID, "off-spec content")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDisableTemplateKeepsRow(t *testing.T) {
	db := newTestDB(t)
	admin := NewAdminService(db, nil)

	adminUser := createTestUser(t, db, models.UserTypeAdmin)
	owner := createTestUser(t, db, models.UserTypeCreator)
	template := createTestTemplate(t, db, owner.ID, 100)

	disabled, err := admin.DisableTemplate(adminUser.ID, template.ID, "off-spec content")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	// The row survives so its name stays burned.
	var got models.DerivativeTemplate
	require.NoError(t, db.First(&got, "id = ?", template.ID).Error)
	assert.Equal(t, template.Name, got.Name)
	assert.False(t, got.Enabled)

	// Disabling again is a no-op, not an error.
	_, err = admin.DisableTemplate(adminUser.ID, template.ID, "again")
	require.NoError(t, err)
}

func TestPlatformStats(t *testing.T) {
	db := newTestDB(t)
	admin := NewAdminService(db, nil)

	createTestUser(t, db, models.UserTypeAdmin)
	owner := createTestUser(t, db, models.UserTypeCreator)
	createTestTemplate(t, db, owner.ID, 100)

	stats, err := admin.GetPlatformStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalTemplates)
	assert.Equal(t, int64(1), stats.UsersByType[string(models.UserTypeAdmin)])
}
