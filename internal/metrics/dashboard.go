// Package metrics rolls per-sale totals up into the dashboard windows.
package metrics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/inventory"
)

const dateLayout = "2006-01-02"

// WindowStart is the first sale date inside an n-day trailing window.
func WindowStart(today time.Time, days int) string {
	return today.AddDate(0, 0, -days).Format(dateLayout)
}

// Dashboard aggregates totals by the sale date of their sale. Totals whose
// sale is missing are skipped. Windows include every sale dated on or after
// today minus N days.
func Dashboard(today time.Time, saleList []domain.Sale, totals []domain.SaleTotals, items []domain.InventoryItem) domain.DashboardMetrics {
	date7 := WindowStart(today, 7)
	date30 := WindowStart(today, 30)

	saleDate := make(map[string]string, len(saleList))
	for _, sale := range saleList {
		saleDate[sale.ID] = sale.SaleDate
	}

	revenue7, revenue30 := decimal.Zero, decimal.Zero
	profit7, profit30 := decimal.Zero, decimal.Zero
	cogs30 := decimal.Zero
	count30 := 0
	dayNet := map[string]decimal.Decimal{}

	for _, t := range totals {
		d, ok := saleDate[t.SaleID]
		if !ok {
			continue
		}
		if d >= date30 {
			revenue30 = revenue30.Add(t.Net)
			profit30 = profit30.Add(t.Profit)
			cogs30 = cogs30.Add(t.Cost)
			dayNet[d] = dayNet[d].Add(t.Net)
			count30++
		}
		if d >= date7 {
			revenue7 = revenue7.Add(t.Net)
			profit7 = profit7.Add(t.Profit)
		}
	}

	days := make([]string, 0, len(dayNet))
	for d := range dayNet {
		days = append(days, d)
	}
	slices.Sort(days)
	byDay := make([]domain.DayRevenue, 0, len(days))
	for _, d := range days {
		byDay = append(byDay, domain.DayRevenue{Date: d, Net: dayNet[d]})
	}

	var avg *decimal.Decimal
	if count30 > 0 {
		avg = domain.DecimalPtr(profit30.Div(decimal.NewFromInt(int64(count30))))
	}

	active := 0
	for _, item := range items {
		if inventory.IsActiveStatus(item.Status) {
			active++
		}
	}

	return domain.DashboardMetrics{
		Revenue7d:            revenue7,
		Revenue30d:           revenue30,
		NetProfit7d:          profit7,
		NetProfit30d:         profit30,
		ProfitMarginPct:      domain.Percent(profit30, revenue30),
		Cogs30d:              cogs30,
		AvgProfitPerItem:     avg,
		ActiveInventoryCount: active,
		RevenueByDay:         byDay,
	}
}
