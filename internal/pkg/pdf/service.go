// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/money"
)

// Service handles PDF generation
type Service struct {
	config *config.Config
	tmpl   *template.Template
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	tmpl := template.Must(template.New("invoice").Funcs(template.FuncMap{
		"money": money.Format,
	}).Parse(invoiceTemplate))

	return &Service{
		config: cfg,
		tmpl:   tmpl,
	}
}

// Invoice is everything printed on an order invoice. Amounts are in cents.
type Invoice struct {
	OrderNumber     string
	OrderDate       time.Time
	Status          string
	PaymentStatus   string
	Currency        string
	CustomerEmail   string
	CouponCode      string
	ShippingAddress Address
	Items           []InvoiceItem
	Subtotal        int64
	Discount        int64
	Shipping        int64
	Tax             int64
	Total           int64
}

// Address is a printable address block
type Address struct {
	FullName     string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	Phone        string
}

// InvoiceItem is one printed line
type InvoiceItem struct {
	Name      string
	SKU       string
	Size      string
	Vendor    string
	Quantity  int
	UnitPrice int64
	Total     int64
}

// InvoiceData represents the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	Invoice       *Invoice
	Company       CompanyInfo
}

// CompanyInfo represents company information
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
}

// GenerateInvoice generates a PDF invoice for an order
func (s *Service) GenerateInvoice(inv *Invoice) (*bytes.Buffer, error) {
	htmlContent, err := s.GenerateHTML(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Grayscale.Set(false)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader([]byte(htmlContent)))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	page.Zoom.Set(0.95)

	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}

	return bytes.NewBuffer(pdfg.Bytes()), nil
}

// GenerateHTML renders the invoice markup fed to wkhtmltopdf
func (s *Service) GenerateHTML(inv *Invoice) (string, error) {
	data := InvoiceData{
		InvoiceNumber: fmt.Sprintf("INV-%s", inv.OrderNumber),
		InvoiceDate:   time.Now().Format("January 2, 2006"),
		Invoice:       inv,
		Company: CompanyInfo{
			Name:    s.config.App.CompanyName,
			Address: s.config.App.CompanyAddress,
			Phone:   s.config.App.CompanyPhone,
			Email:   s.config.App.CompanyEmail,
			Website: s.config.App.CompanyWebsite,
		},
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

const invoiceTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { display: flex; justify-content: space-between; margin-bottom: 30px; border-bottom: 2px solid #eee; padding-bottom: 20px; }
        .invoice-info { text-align: right; }
        .invoice-title { font-size: 28px; font-weight: bold; color: #5b2333; margin-bottom: 10px; }
        .section-title { font-size: 16px; font-weight: bold; margin-bottom: 10px; color: #374151; }
        .items-table { width: 100%; border-collapse: collapse; margin: 30px 0; }
        .items-table th, .items-table td { border: 1px solid #ddd; padding: 10px 8px; text-align: left; }
        .items-table th { background-color: #f8f9fa; }
        .num { text-align: right !important; }
        .totals { float: right; width: 300px; }
        .totals table { width: 100%; border-collapse: collapse; }
        .totals td { padding: 8px; border-bottom: 1px solid #eee; text-align: right; }
        .total-row td { font-size: 18px; font-weight: bold; border-top: 2px solid #333; }
        .status-badge { display: inline-block; padding: 4px 8px; border-radius: 4px; font-size: 12px; font-weight: bold; text-transform: uppercase; }
        .status-paid { background-color: #dcfce7; color: #166534; }
        .status-pending { background-color: #fef3c7; color: #92400e; }
        .footer { margin-top: 50px; padding-top: 20px; border-top: 1px solid #eee; text-align: center; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <div>
            <h1>{{.Company.Name}}</h1>
            <p>{{.Company.Address}}</p>
            <p>Phone: {{.Company.Phone}}</p>
            <p>Email: {{.Company.Email}}</p>
            <p>{{.Company.Website}}</p>
        </div>
        <div class="invoice-info">
            <div class="invoice-title">INVOICE</div>
            <p><strong>Invoice #:</strong> {{.InvoiceNumber}}</p>
            <p><strong>Invoice Date:</strong> {{.InvoiceDate}}</p>
            <p><strong>Order #:</strong> {{.Invoice.OrderNumber}}</p>
            <p><strong>Order Date:</strong> {{.Invoice.OrderDate.Format "January 2, 2006"}}</p>
            <p>
                <span class="status-badge {{if eq .Invoice.PaymentStatus "paid"}}status-paid{{else}}status-pending{{end}}">
                    {{.Invoice.PaymentStatus}}
                </span>
            </p>
        </div>
    </div>

    <div>
        <div class="section-title">Ship To:</div>
        {{with .Invoice.ShippingAddress}}
        <p><strong>{{.FullName}}</strong></p>
        <p>{{.AddressLine1}}</p>
        {{if .AddressLine2}}<p>{{.AddressLine2}}</p>{{end}}
        <p>{{.City}}, {{.State}} {{.PostalCode}}</p>
        <p>{{.Country}}</p>
        {{if .Phone}}<p>Phone: {{.Phone}}</p>{{end}}
        {{end}}
        <p>Email: {{.Invoice.CustomerEmail}}</p>
    </div>

    <table class="items-table">
        <thead>
            <tr>
                <th>Item</th>
                <th>SKU</th>
                <th>Vendor</th>
                <th class="num">Qty</th>
                <th class="num">Price</th>
                <th class="num">Total</th>
            </tr>
        </thead>
        <tbody>
            {{$cur := .Invoice.Currency}}
            {{range .Invoice.Items}}
            <tr>
                <td><strong>{{.Name}}</strong>{{if .Size}}<br><small>{{.Size}}</small>{{end}}</td>
                <td>{{.SKU}}</td>
                <td>{{.Vendor}}</td>
                <td class="num">{{.Quantity}}</td>
                <td class="num">{{money .UnitPrice $cur}}</td>
                <td class="num">{{money .Total $cur}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    <div class="totals">
        <table>
            <tr><td>Subtotal:</td><td>{{money .Invoice.Subtotal $cur}}</td></tr>
            {{if gt .Invoice.Discount 0}}
            <tr><td>Discount{{if .Invoice.CouponCode}} ({{.Invoice.CouponCode}}){{end}}:</td><td>-{{money .Invoice.Discount $cur}}</td></tr>
            {{end}}
            <tr><td>Shipping:</td><td>{{money .Invoice.Shipping $cur}}</td></tr>
            <tr><td>Tax:</td><td>{{money .Invoice.Tax $cur}}</td></tr>
            <tr class="total-row"><td>Total:</td><td>{{money .Invoice.Total $cur}}</td></tr>
        </table>
    </div>

    <div style="clear: both;"></div>

    <div class="footer">
        <p>Thank you for shopping with us. Please drink responsibly.</p>
        <p>If you have any questions about this invoice, please contact us at {{.Company.Email}} or {{.Company.Phone}}</p>
    </div>
</body>
</html>
`
