package analytics

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"ms-checkout/internal/apperror"
	"ms-checkout/internal/catalog"
)

type SalesStore interface {
	GetApprovedSales(ctx context.Context, eventID string) ([]ApprovedSale, error)
	GetLineRevenue(ctx context.Context, eventID string) (map[string]LineRevenue, error)
}

type TicketCounter interface {
	CountIssuedByType(ctx context.Context, ticketTypeIDs []string) (map[string]int, error)
}

// Service handles analytics operations
type Service struct {
	db      SalesStore
	catalog catalog.Reader
	tickets TicketCounter
}

// NewService creates a new analytics service
func NewService(db SalesStore, reader catalog.Reader, tickets TicketCounter) *Service {
	return &Service{db: db, catalog: reader, tickets: tickets}
}

// EventSales is the sales report of one event.
type EventSales struct {
	EventID           string              `json:"eventId"`
	ApprovedPurchases int                 `json:"approvedPurchases"`
	TicketsIssued     int                 `json:"ticketsIssued"`
	GrossRevenue      decimal.Decimal     `json:"grossRevenue"`
	TotalDiscount     decimal.Decimal     `json:"totalDiscount"`
	NetRevenue        decimal.Decimal     `json:"netRevenue"`
	ByTicketType      []TicketTypeSales   `json:"byTicketType"`
	DailySales        []DailySalesMetrics `json:"dailySales"`
	CouponUsage       []CouponUsage       `json:"couponUsage"`
}

type TicketTypeSales struct {
	TicketTypeID  string          `json:"ticketTypeId"`
	Name          string          `json:"name"`
	TotalCapacity int             `json:"totalCapacity"`
	Available     int             `json:"available"`
	TicketsIssued int             `json:"ticketsIssued"`
	QuantitySold  int             `json:"quantitySold"`
	GrossRevenue  decimal.Decimal `json:"grossRevenue"`
}

// DailySalesMetrics contains metrics for a single day
type DailySalesMetrics struct {
	Date       string          `json:"date"`
	Purchases  int             `json:"purchases"`
	NetRevenue decimal.Decimal `json:"netRevenue"`
}

type CouponUsage struct {
	Code          string          `json:"code"`
	Uses          int             `json:"uses"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
}

// SalesSummary reports capacity, issued tickets and revenue of an event.
// Only approved purchases count.
func (s *Service) SalesSummary(ctx context.Context, eventID string) (*EventSales, error) {
	if eventID == "" {
		return nil, apperror.New(apperror.KindValidation, "eventId is required")
	}

	types, err := s.catalog.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(types))
	for i, tt := range types {
		ids[i] = tt.ID
	}

	issued, err := s.tickets.CountIssuedByType(ctx, ids)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "count tickets", err)
	}
	revenue, err := s.db.GetLineRevenue(ctx, eventID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "line revenue", err)
	}
	sales, err := s.db.GetApprovedSales(ctx, eventID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "approved sales", err)
	}

	report := &EventSales{
		EventID:           eventID,
		ApprovedPurchases: len(sales),
		GrossRevenue:      decimal.Zero,
		TotalDiscount:     decimal.Zero,
		NetRevenue:        decimal.Zero,
		ByTicketType:      make([]TicketTypeSales, 0, len(types)),
	}

	for _, tt := range types {
		rev := revenue[tt.ID]
		gross := rev.Gross
		report.ByTicketType = append(report.ByTicketType, TicketTypeSales{
			TicketTypeID:  tt.ID,
			Name:          tt.Name,
			TotalCapacity: tt.TotalCapacity,
			Available:     tt.Available,
			TicketsIssued: issued[tt.ID],
			QuantitySold:  rev.Quantity,
			GrossRevenue:  gross.Round(2),
		})
		report.TicketsIssued += issued[tt.ID]
		report.GrossRevenue = report.GrossRevenue.Add(gross)
	}

	for _, sale := range sales {
		report.TotalDiscount = report.TotalDiscount.Add(sale.DiscountAmount)
		report.NetRevenue = report.NetRevenue.Add(sale.TotalAmount)
	}
	report.GrossRevenue = report.GrossRevenue.Round(2)
	report.TotalDiscount = report.TotalDiscount.Round(2)
	report.NetRevenue = report.NetRevenue.Round(2)
	report.DailySales = dailySales(sales)
	report.CouponUsage = couponUsage(sales)
	return report, nil
}

func dailySales(sales []ApprovedSale) []DailySalesMetrics {
	byDay := make(map[string]*DailySalesMetrics)
	for _, sale := range sales {
		day := sale.ProcessedAt.UTC().Format("2006-01-02")
		m, ok := byDay[day]
		if !ok {
			m = &DailySalesMetrics{Date: day, NetRevenue: decimal.Zero}
			byDay[day] = m
		}
		m.Purchases++
		m.NetRevenue = m.NetRevenue.Add(sale.TotalAmount)
	}

	out := make([]DailySalesMetrics, 0, len(byDay))
	for _, m := range byDay {
		m.NetRevenue = m.NetRevenue.Round(2)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func couponUsage(sales []ApprovedSale) []CouponUsage {
	byCode := make(map[string]*CouponUsage)
	for _, sale := range sales {
		if sale.CouponCode == nil || *sale.CouponCode == "" {
			continue
		}
		u, ok := byCode[*sale.CouponCode]
		if !ok {
			u = &CouponUsage{Code: *sale.CouponCode, TotalDiscount: decimal.Zero}
			byCode[*sale.CouponCode] = u
		}
		u.Uses++
		u.TotalDiscount = u.TotalDiscount.Add(sale.DiscountAmount)
	}

	out := make([]CouponUsage, 0, len(byCode))
	for _, u := range byCode {
		u.TotalDiscount = u.TotalDiscount.Round(2)
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
