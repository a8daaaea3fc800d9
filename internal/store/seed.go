package store

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"storeledger/backend/internal/domain"
)

const DefaultSeedPassword = "123456"

func SeedStaff() []domain.Staff {
	return []domain.Staff{
		{StaffID: "staff001", Name: "Zhang San", Position: "Manager"},
		{StaffID: "staff002", Name: "Li Si", Position: "Cashier"},
		{StaffID: "staff003", Name: "Wang Wu", Position: "Warehouse Keeper"},
		{StaffID: "staff004", Name: "Zhao Liu", Position: "Purchaser"},
	}
}

// SeedUsers returns the two default accounts with bcrypt-hashed passwords.
func SeedUsers(adminPassword string, userPassword string) ([]domain.User, error) {
	accounts := []struct {
		username string
		password string
		staffID  string
		role     string
	}{
		{"user", adminPassword, "staff001", domain.RoleAdmin},
		{"test", userPassword, "staff002", domain.RoleUser},
	}

	users := make([]domain.User, 0, len(accounts))
	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", a.username, err)
		}
		staffID := a.staffID
		users = append(users, domain.User{
			Username: a.username,
			Password: string(hash),
			StaffID:  &staffID,
			Role:     a.role,
		})
	}
	return users, nil
}

func SeedProducts() []domain.Product {
	rows := []struct {
		id, name, price string
		qty             int
		category        string
	}{
		{"p001", "Potato", "2.50", 100, "Vegetables"},
		{"p002", "Chicken", "15.80", 50, "Meat"},
		{"p003", "Beef", "38.60", 30, "Meat"},
		{"p004", "Chili Pepper", "3.20", 80, "Vegetables"},
		{"p005", "Bread", "4.50", 60, "Food"},
		{"p006", "Carrot", "2.80", 70, "Vegetables"},
		{"p007", "Instant Noodles", "5.00", 120, "Food"},
		{"p008", "Toothpaste", "9.90", 90, "Daily Goods"},
		{"p009", "Shampoo", "25.80", 40, "Daily Goods"},
		{"p010", "Notebook", "8.50", 75, "Stationery"},
	}

	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, domain.Product{
			ProductID: r.id,
			Name:      r.name,
			Price:     decimal.RequireFromString(r.price),
			Quantity:  r.qty,
			Category:  r.category,
			StaffID:   "staff001",
		})
	}
	return products
}
