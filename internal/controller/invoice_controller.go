package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/service"
)

// InvoiceController serves the admin invoice endpoints.
type InvoiceController struct {
	invoices *service.InvoiceService
}

// NewInvoiceController creates an invoice controller
func NewInvoiceController(invoices *service.InvoiceService) *InvoiceController {
	return &InvoiceController{invoices: invoices}
}

func (c *InvoiceController) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	items := make([]invoice.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, invoice.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			RateCents:   it.RateCents,
		})
	}

	inv, err := c.invoices.CreateInvoice(r.Context(), service.CreateInvoiceInput{
		InvoiceNumber:   req.InvoiceNumber,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		DueDate:         req.DueDate,
		Notes:           req.Notes,
		Items:           items,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (c *InvoiceController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.NewValidationError("id", "must be a valid UUID"))
		return
	}

	inv, err := c.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (c *InvoiceController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := invoice.ListFilter{
		Status: invoice.Status(q.Get("status")),
		Search: q.Get("search"),
		Limit:  20,
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 100 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	invoices, total, err := c.invoices.ListInvoices(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := invoiceListResponse{Invoices: make([]invoiceResponse, 0, len(invoices)), Total: total}
	for _, inv := range invoices {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *InvoiceController) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.NewValidationError("id", "must be a valid UUID"))
		return
	}

	inv, err := c.invoices.MarkInvoiceOverdue(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (c *InvoiceController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.invoices.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	counts := make(map[string]int64, len(stats.CountsByStatus))
	for status, n := range stats.CountsByStatus {
		counts[string(status)] = n
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalInvoices:    stats.TotalInvoices,
		CountsByStatus:   counts,
		CollectedCents:   stats.CollectedCents,
		OutstandingCents: stats.OutstandingCents,
	})
}
