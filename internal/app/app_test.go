package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/pizzeria/config"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/internal/storetest"
)

func newTestApp(t *testing.T) *Application {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test"
	cfg.Auth.AdminPassword = "adminpassword"
	a := NewApplication(cfg)
	a.OverrideDB(storetest.Open(t))
	return a
}

func TestServicesWired(t *testing.T) {
	a := newTestApp(t)
	assert.NotNil(t, a.Catalog())
	assert.NotNil(t, a.Orders())
	assert.NotNil(t, a.Payments())
	assert.NotNil(t, a.Accounts())
	assert.Equal(t, []byte("test"), a.Tokens().Secret())
}

func TestSeedingIsIdempotent(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 2; i++ {
		a.checkSuper()
		a.checkMenu()
	}

	var admins int64
	require.NoError(t, a.DB().Model(&domain.User{}).Where("username = ? AND is_staff = ?", "admin", true).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)

	var items, toppings int64
	require.NoError(t, a.DB().Model(&domain.MenuItem{}).Count(&items).Error)
	require.NoError(t, a.DB().Model(&domain.Topping{}).Count(&toppings).Error)
	assert.EqualValues(t, 5, items)
	assert.EqualValues(t, 3, toppings)
}

func TestCheckSuperRestoresStaffFlag(t *testing.T) {
	a := newTestApp(t)
	a.checkSuper()
	require.NoError(t, a.DB().Model(&domain.User{}).Where("username = ?", "admin").Update("is_staff", false).Error)

	a.checkSuper()
	var u domain.User
	require.NoError(t, a.DB().Where("username = ?", "admin").First(&u).Error)
	assert.True(t, u.IsStaff)
}

func TestInitDbRecreatesSchema(t *testing.T) {
	a := newTestApp(t)
	a.checkMenu()
	a.InitDb()

	var items int64
	require.NoError(t, a.DB().Model(&domain.MenuItem{}).Count(&items).Error)
	assert.Zero(t, items)
	assert.True(t, a.DB().Migrator().HasTable("order_item_toppings"))
}
