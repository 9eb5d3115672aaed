// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/order"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/pdf"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice-related endpoints
type InvoiceHandler struct {
	orderService *order.Service
	pdfService   *pdf.Service
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orderService *order.Service, pdfService *pdf.Service) *InvoiceHandler {
	return &InvoiceHandler{
		orderService: orderService,
		pdfService:   pdfService,
	}
}

// GenerateInvoice handles GET /orders/:id/invoice
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	inv, err := h.orderService.Invoice(c.Request.Context(), orderViewer(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	pdfBuffer, err := h.pdfService.GenerateInvoice(inv)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", inv.OrderNumber))
	c.Header("Content-Length", strconv.Itoa(pdfBuffer.Len()))
	c.Data(http.StatusOK, "application/pdf", pdfBuffer.Bytes())
}

// GetInvoiceHTML handles GET /orders/:id/invoice/preview
func (h *InvoiceHandler) GetInvoiceHTML(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	inv, err := h.orderService.Invoice(c.Request.Context(), orderViewer(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	html, err := h.pdfService.GenerateHTML(inv)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
