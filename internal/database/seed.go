package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/equipment-lending/internal/model"
	"github.com/iliyamo/equipment-lending/internal/repository"
	"github.com/iliyamo/equipment-lending/internal/service"
	"github.com/iliyamo/equipment-lending/internal/utils"
)

type seedUser struct {
	username, password, display string
	role                        model.Role
}

var demoUsers = []seedUser{
	{"ram", "ram@123", "Sai Ram", model.RoleStudent},
	{"suresh", "suresh@123", "Suresh Babu", model.RoleStaff},
	{"prakash", "prakash@123", "Prakash Raj", model.RoleAdmin},
}

var demoItems = []model.Item{
	{Name: "Canon EOS 80D", Category: "Camera", ConditionNote: "Needs strap replacement", TotalQuantity: 5, AvailableQuantity: 5},
	{Name: "Basketball Kit", Category: "Sports", ConditionNote: "Used but intact", TotalQuantity: 20, AvailableQuantity: 18},
	{Name: "Chemistry Lab Set", Category: "Lab", ConditionNote: "Glassware missing 2 test tubes", TotalQuantity: 10, AvailableQuantity: 9},
	{Name: "Acoustic Guitar", Category: "Music", ConditionNote: "Strings replaced recently", TotalQuantity: 3, AvailableQuantity: 3},
}

// Seed inserts demo accounts and catalog items. Each set is only written
// into an empty table, so running it on every start is harmless.
func Seed(ctx context.Context, store repository.Store, bcryptCost int, log *zap.Logger) error {
	n, err := store.Users().Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n == 0 {
		for _, su := range demoUsers {
			hash, err := utils.HashPassword(su.password, bcryptCost)
			if err != nil {
				return fmt.Errorf("hash %s: %w", su.username, err)
			}
			u := &model.User{Username: su.username, PasswordHash: hash, DisplayName: su.display, Role: su.role}
			if err := store.Users().Create(ctx, u); err != nil {
				return fmt.Errorf("seed user %s: %w", su.username, err)
			}
		}
		log.Info("seeded demo accounts", zap.Int("count", len(demoUsers)))
	}

	items, err := store.Items().List(ctx, model.ItemFilter{})
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		ledger := service.NewLedger(store)
		for _, it := range demoItems {
			it := it
			if err := ledger.Upsert(ctx, &it); err != nil {
				return fmt.Errorf("seed item %s: %w", it.Name, err)
			}
		}
		log.Info("seeded demo catalog", zap.Int("count", len(demoItems)))
	}
	return nil
}
