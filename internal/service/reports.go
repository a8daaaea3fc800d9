package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

const (
	topSoldLimit       = 10
	topRevenueLimit    = 5
	topStockLimit      = 5
	priceHistogramBins = 10
)

var hundred = decimal.NewFromInt(100)

// Reporter builds read-only aggregates over the full sales and product tables.
type Reporter struct {
	repo store.Repository
	now  func() time.Time
}

func NewReporter(repo store.Repository) *Reporter {
	return &Reporter{repo: repo, now: utcNow}
}

func (r *Reporter) SalesReport(ctx context.Context) (domain.SalesReport, error) {
	sales, err := r.repo.ListSales(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if len(sales) == 0 {
		return domain.SalesReport{}, fmt.Errorf("%w: no sales data", store.ErrNotFound)
	}

	total := decimal.Zero
	daily := map[string]decimal.Decimal{}
	hourly := map[int]decimal.Decimal{}
	units := map[string]int{}
	revenue := map[string]decimal.Decimal{}
	for _, s := range sales {
		at := s.SaleDate.UTC()
		total = total.Add(s.TotalPrice)
		day := at.Format(time.DateOnly)
		daily[day] = daily[day].Add(s.TotalPrice)
		hourly[at.Hour()] = hourly[at.Hour()].Add(s.TotalPrice)
		units[s.ProductName] += s.Quantity
		revenue[s.ProductName] = revenue[s.ProductName].Add(s.TotalPrice)
	}

	report := domain.SalesReport{
		GeneratedAt:   r.now().Format(time.RFC3339),
		TotalRevenue:  total,
		SaleCount:     len(sales),
		DailyRevenue:  make([]domain.DailyRevenue, 0, len(daily)),
		TopByQuantity: make([]domain.ProductUnits, 0, len(units)),
		TopByRevenue:  make([]domain.ProductRevenue, 0, len(revenue)),
		RevenueByHour: make([]domain.HourlyRevenue, 0, len(hourly)),
	}

	for day, amount := range daily {
		report.DailyRevenue = append(report.DailyRevenue, domain.DailyRevenue{Date: day, Revenue: amount})
	}
	slices.SortFunc(report.DailyRevenue, func(a, b domain.DailyRevenue) int { return cmp.Compare(a.Date, b.Date) })

	for hour, amount := range hourly {
		report.RevenueByHour = append(report.RevenueByHour, domain.HourlyRevenue{Hour: hour, Revenue: amount})
	}
	slices.SortFunc(report.RevenueByHour, func(a, b domain.HourlyRevenue) int { return cmp.Compare(a.Hour, b.Hour) })

	for name, qty := range units {
		report.TopByQuantity = append(report.TopByQuantity, domain.ProductUnits{ProductName: name, Quantity: qty})
	}
	slices.SortFunc(report.TopByQuantity, func(a, b domain.ProductUnits) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	report.TopByQuantity = truncate(report.TopByQuantity, topSoldLimit)

	for name, amount := range revenue {
		report.TopByRevenue = append(report.TopByRevenue, domain.ProductRevenue{
			ProductName:  name,
			Revenue:      amount,
			SharePercent: percent(amount, total),
		})
	}
	slices.SortFunc(report.TopByRevenue, func(a, b domain.ProductRevenue) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	report.TopByRevenue = truncate(report.TopByRevenue, topRevenueLimit)

	return report, nil
}

func (r *Reporter) InventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	if len(products) == 0 {
		return domain.InventoryReport{}, fmt.Errorf("%w: no product data", store.ErrNotFound)
	}

	report := domain.InventoryReport{
		GeneratedAt:     r.now().Format(time.RFC3339),
		ProductCount:    len(products),
		TotalStockValue: decimal.Zero,
	}

	byCategory := map[string]int{}
	values := make([]domain.ProductStockValue, 0, len(products))
	for _, p := range products {
		value := StockValue(p.Product)
		report.TotalUnits += p.Quantity
		report.TotalStockValue = report.TotalStockValue.Add(value)
		byCategory[p.Category] += p.Quantity
		values = append(values, domain.ProductStockValue{
			ProductID:  p.ProductID,
			Name:       p.Name,
			Quantity:   p.Quantity,
			StockValue: value,
		})
	}

	report.ByCategory = make([]domain.CategoryStock, 0, len(byCategory))
	totalUnits := decimal.NewFromInt(int64(report.TotalUnits))
	for category, qty := range byCategory {
		report.ByCategory = append(report.ByCategory, domain.CategoryStock{
			Category:     category,
			Quantity:     qty,
			SharePercent: percent(decimal.NewFromInt(int64(qty)), totalUnits),
		})
	}
	slices.SortFunc(report.ByCategory, func(a, b domain.CategoryStock) int { return cmp.Compare(a.Category, b.Category) })

	byValue := slices.Clone(values)
	slices.SortFunc(byValue, func(a, b domain.ProductStockValue) int {
		if c := b.StockValue.Cmp(a.StockValue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	report.TopByValue = truncate(byValue, topStockLimit)

	byQuantity := slices.Clone(values)
	slices.SortFunc(byQuantity, func(a, b domain.ProductStockValue) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	report.TopByQuantity = truncate(byQuantity, topStockLimit)

	report.PriceHistogram = priceHistogram(products)
	return report, nil
}

// StockValue is price times quantity on hand.
func StockValue(p domain.Product) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// priceHistogram spreads prices over equal-width bins between the lowest and
// highest price. The highest price falls in the last bin.
func priceHistogram(products []domain.ProductView) []domain.PriceBucket {
	low, high := products[0].Price, products[0].Price
	for _, p := range products[1:] {
		low = decimal.Min(low, p.Price)
		high = decimal.Max(high, p.Price)
	}
	if low.Equal(high) {
		return []domain.PriceBucket{{From: low, To: high, Count: len(products)}}
	}

	width := high.Sub(low).Div(decimal.NewFromInt(priceHistogramBins))
	buckets := make([]domain.PriceBucket, priceHistogramBins)
	for i := range buckets {
		buckets[i].From = low.Add(width.Mul(decimal.NewFromInt(int64(i))))
		buckets[i].To = low.Add(width.Mul(decimal.NewFromInt(int64(i + 1))))
	}
	buckets[priceHistogramBins-1].To = high

	for _, p := range products {
		idx := int(p.Price.Sub(low).Div(width).IntPart())
		if idx >= priceHistogramBins {
			idx = priceHistogramBins - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

func percent(part decimal.Decimal, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(hundred).Div(whole).Round(2).InexactFloat64()
}

func truncate[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
