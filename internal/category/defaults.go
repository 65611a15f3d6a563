// Package category owns the two-level need/want taxonomy and maps provider
// category paths onto its leaves.
package category

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
)

// Group is a top-level category with its leaves in the order they are created.
type Group struct {
	Name   string
	Type   model.CategoryGroupType
	Leaves []string
}

// DefaultTaxonomy mirrors the provider's top-level categories. Leaf order matters:
// a path that stops at a group resolves to that group's first leaf.
var DefaultTaxonomy = []Group{
	{
		Name:   "Loans",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Auto Loan", "Student Loan", "Mortgage", "auto", "student", "mortgage", "home equity", "line of credit"},
	},
	{
		Name:   "Savings & Retirement",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Retirement Contribution", "ira", "401k", "cd", "money market"},
	},
	{
		Name:   "Healthcare",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Healthcare Services", "Pharmacies", "Physicians", "Dentists"},
	},
	{
		Name:   "Service",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Utilities", "Telecommunication Services", "Insurance", "Internet Services"},
	},
	{
		Name:   "Travel",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Public Transportation Services", "Gas Stations", "Taxi", "Airlines and Aviation Services", "Car Service"},
	},
	{
		Name:   "Bank Fees",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Overdraft", "ATM", "Late Payment", "Foreign Transaction"},
	},
	{
		Name:   "Payment",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Credit Card", "Rent"},
	},
	{
		Name:   "Transfer",
		Type:   model.CategoryTypeNeed,
		Leaves: []string{"Payroll", "Deposit", "Internal Account Transfer"},
	},
	{
		Name:   "Food and Drink",
		Type:   model.CategoryTypeWant,
		Leaves: []string{"Restaurants", "Coffee Shop", "Fast Food", "Groceries", "Bar"},
	},
	{
		Name:   "Shops",
		Type:   model.CategoryTypeWant,
		Leaves: []string{"Clothing and Accessories", "Digital Purchase", "Supermarkets and Groceries", "Electronics", "Sporting Goods"},
	},
	{
		Name:   "Recreation",
		Type:   model.CategoryTypeWant,
		Leaves: []string{"Gyms and Fitness Centers", "Arts and Entertainment", "Sports", "Outdoors"},
	},
}

// Seed creates the given groups and leaves. Existing names are left untouched,
// so seeding is safe to repeat. It returns how many nodes the taxonomy holds afterwards.
func Seed(ctx context.Context, repo service.TaxonomyRepository, groups []Group) (int, error) {
	count := 0
	for _, g := range groups {
		if g.Type != model.CategoryTypeNeed && g.Type != model.CategoryTypeWant {
			return count, fmt.Errorf("group %q has invalid type %q", g.Name, g.Type)
		}

		top, err := repo.CreateCategory(ctx, g.Name, nil, g.Type)
		if err != nil {
			return count, fmt.Errorf("failed to seed group %q: %w", g.Name, err)
		}
		count++

		for _, leaf := range g.Leaves {
			if _, err := repo.CreateCategory(ctx, leaf, &top.ID, ""); err != nil {
				return count, fmt.Errorf("failed to seed leaf %q under %q: %w", leaf, g.Name, err)
			}
			count++
		}
	}

	slog.Info("Seeded category taxonomy", "groups", len(groups), "nodes", count)
	return count, nil
}
