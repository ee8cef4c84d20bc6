package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/pizzeria/internal/account"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/pkg/common"
)

const defaultAdminPassword = "pizzeria"

// checkSuper makes sure the staff account from the configuration exists and
// still holds staff rights.
func (a *Application) checkSuper() {
	username := common.IfEmptyStr(a.appConfig.Auth.AdminUsername, "admin")
	password := a.appConfig.Auth.AdminPassword
	if password == "" {
		password = defaultAdminPassword
		zap.L().Warn("auth.admin_password not set, using the default password", zap.String("username", username))
	}

	created, err := a.accounts.EnsureUser(context.Background(), account.RegisterInput{
		Username: username,
		Email:    common.NA,
		Password: password,
	}, true)
	if err != nil {
		zap.L().Error("failed to create default staff account", zap.Error(err))
		return
	}
	if created {
		zap.L().Info("initialized default staff account", zap.String("username", username))
		return
	}

	res := a.gormDB.Model(&domain.User{}).
		Where("username = ? AND is_staff = ?", username, false).
		Updates(map[string]interface{}{"is_staff": true, "updated_at": time.Now()})
	if res.Error != nil {
		zap.L().Error("failed to repair default staff account", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		zap.L().Warn("repaired default staff account", zap.String("username", username))
	}
}

// checkMenu seeds a starter menu into an empty catalog.
func (a *Application) checkMenu() {
	var count int64
	a.gormDB.Model(&domain.MenuItem{}).Count(&count)
	if count == 0 {
		defaultItems := []domain.MenuItem{
			{Name: "Margarita", PriceSmall: domain.SomeMoney("5.50"), PriceLarge: domain.SomeMoney("7.50"), Category: domain.CategoryPizza,
				Description: "Tomato, mozzarella and basil"},
			{Name: "Pepperoni", PriceSmall: domain.SomeMoney("6.50"), PriceLarge: domain.SomeMoney("9.00"), Category: domain.CategoryPizza},
			{Name: "Customizable Pizza", PriceLarge: domain.SomeMoney("20.00"), Category: domain.CategoryPizza,
				Description: "Build your own large pizza"},
			{Name: "Garlic Bread", PriceSmall: domain.SomeMoney("3.00"), Category: domain.CategoryBreads},
			{Name: "Tiramisu", PriceSmall: domain.SomeMoney("4.25"), Category: domain.CategoryDeserts},
		}
		for _, m := range defaultItems {
			m.ID = common.UUIDint64()
			m.CreatedAt = time.Now()
			m.UpdatedAt = time.Now()
			if err := a.gormDB.Create(&m).Error; err != nil {
				zap.L().Error("failed to create default menu item", zap.String("name", m.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default menu item", zap.String("name", m.Name))
			}
		}
	}

	defaultToppings := []domain.Topping{
		{Name: "Extra Cheese", Price: domain.MustMoney("2.00")},
		{Name: "Mushrooms", Price: domain.MustMoney("1.25")},
		{Name: "Olives", Price: domain.MustMoney("0.75")},
	}
	for _, t := range defaultToppings {
		var n int64
		a.gormDB.Model(&domain.Topping{}).Where("name = ?", t.Name).Count(&n)
		if n == 0 {
			t.ID = common.UUIDint64()
			t.CreatedAt = time.Now()
			t.UpdatedAt = time.Now()
			if err := a.gormDB.Create(&t).Error; err != nil {
				zap.L().Error("failed to create default topping", zap.String("name", t.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default topping", zap.String("name", t.Name))
			}
		}
	}
}
