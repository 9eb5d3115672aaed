// internal/pkg/email/templates.go
package email

import (
	"fmt"
	"html/template"
)

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.SiteName}}</title>
</head>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f6f3ee;">
    <div style="max-width: 640px; margin: 0 auto; background-color: white; padding: 24px; border-radius: 8px;">
        <h1 style="color: #5b2333; margin-top: 0;">{{.SiteName}}</h1>
        {{template "content" .}}
        <hr>
        <p style="font-size: 12px; color: #666;">
            Please drink responsibly. Questions? Visit <a href="{{.SupportURL}}">{{.SupportURL}}</a>.<br>
            &copy; {{.Year}} {{.SiteName}}. All rights reserved.
        </p>
    </div>
</body>
</html>{{end}}`

var contentTemplates = map[EmailType]string{
	EmailTypeWelcome: `{{define "content"}}
<p>Hello {{.UserName}},</p>
<p>Welcome to {{.SiteName}}. Your account is ready and you can start exploring wines, beers and spirits from our vendors.</p>
<p><a href="{{.ShopURL}}">Start shopping</a></p>
{{end}}`,

	EmailTypeOrderConfirmation: `{{define "content"}}
<p>Hello {{.UserName}},</p>
<p>Thank you for your order <strong>{{.OrderNumber}}</strong> placed on {{.OrderDate}}.</p>
<table style="width: 100%; border-collapse: collapse;">
    <tr><th align="left">Item</th><th align="left">Size</th><th align="right">Qty</th><th align="right">Total</th></tr>
    {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Size}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.Total}}</td></tr>
    {{end}}
</table>
<p>Subtotal: {{.Subtotal}}<br>
{{if .CouponCode}}Discount ({{.CouponCode}}): -{{.Discount}}<br>{{end}}
Shipping: {{.Shipping}}<br>
Tax: {{.Tax}}<br>
<strong>Total: {{.OrderTotal}}</strong></p>
<p>Shipping to: {{.ShippingAddress.FullName}}, {{.ShippingAddress.AddressLine1}}, {{.ShippingAddress.City}} {{.ShippingAddress.PostalCode}}, {{.ShippingAddress.Country}}</p>
<p><a href="{{.OrderURL}}">View your order</a></p>
{{end}}`,

	EmailTypeOrderStatusUpdate: `{{define "content"}}
<p>Hello {{.UserName}},</p>
<p>Your order <strong>{{.OrderNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
<p>{{.StatusMessage}}</p>
{{if .TrackingNumber}}<p>Tracking number: {{.TrackingNumber}}{{if .Carrier}} ({{.Carrier}}){{end}}</p>{{end}}
<p><a href="{{.OrderURL}}">View your order</a></p>
{{end}}`,

	EmailTypePaymentSuccess: `{{define "content"}}
<p>Hello {{.UserName}},</p>
<p>We received your payment of <strong>{{.Amount}}</strong> for order {{.OrderNumber}} on {{.Date}}.</p>
<p>Reference: {{.TransactionID}}</p>
<p><a href="{{.OrderURL}}">View your order</a></p>
{{end}}`,

	EmailTypePaymentFailed: `{{define "content"}}
<p>Hello {{.UserName}},</p>
<p>Your payment of <strong>{{.Amount}}</strong> for order {{.OrderNumber}} could not be completed.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p><a href="{{.OrderURL}}">Try again</a></p>
{{end}}`,

	EmailTypeVendorRevenueReport: `{{define "content"}}
<p>Vendor revenue from {{.From}} to {{.To}}.</p>
<table style="width: 100%; border-collapse: collapse;">
    <tr><th align="left">Vendor</th><th align="right">Orders</th><th align="right">Units</th><th align="right">Gross</th><th align="right">Platform</th><th align="right">Payout</th></tr>
    {{range .Rows}}<tr><td>{{.TenantName}}</td><td align="right">{{.Orders}}</td><td align="right">{{.Units}}</td><td align="right">{{.Gross}}</td><td align="right">{{.PlatformFee}}</td><td align="right">{{.TenantPayout}}</td></tr>
    {{end}}
</table>
<p><strong>Gross: {{.TotalGross}}</strong><br>Platform fees: {{.TotalPlatform}}</p>
{{end}}`,
}

func parseTemplates() (map[EmailType]*template.Template, error) {
	layout, err := template.New("layout").Parse(layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}

	templates := make(map[EmailType]*template.Template, len(contentTemplates))
	for name, body := range contentTemplates {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone email layout: %w", err)
		}
		if _, err := t.Parse(body); err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		templates[name] = t
	}
	return templates, nil
}
