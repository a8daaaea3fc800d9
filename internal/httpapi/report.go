package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/service"
)

func salesToCSV(sales []domain.Sale) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"sale_id", "product_id", "product_name", "quantity", "unit_price", "total_price", "sale_date"})
	for _, sale := range sales {
		_ = writer.Write([]string{
			strconv.FormatInt(sale.SaleID, 10),
			sale.ProductID,
			sale.ProductName,
			strconv.Itoa(sale.Quantity),
			sale.UnitPrice.StringFixed(2),
			sale.TotalPrice.StringFixed(2),
			sale.SaleDate.Format("2006-01-02 15:04:05"),
		})
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func productsToCSV(products []domain.ProductView) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"product_id", "name", "price", "quantity", "category", "staff_id", "staff_name", "stock_value"})
	for _, p := range products {
		staffName := ""
		if p.StaffName != nil {
			staffName = *p.StaffName
		}
		_ = writer.Write([]string{
			p.ProductID,
			p.Name,
			p.Price.StringFixed(2),
			strconv.Itoa(p.Quantity),
			p.Category,
			p.StaffID,
			staffName,
			service.StockValue(p.Product).StringFixed(2),
		})
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// writeCSV sends body as an attachment named <prefix>_YYYYMMDD.csv.
func writeCSV(w http.ResponseWriter, prefix string, body []byte) {
	filename := fmt.Sprintf("%s_%s.csv", prefix, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

const reportStyle = `
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }`

var salesReportTmpl = template.Must(template.New("sales-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Sales Report</title>
  <style>` + reportStyle + `</style>
</head>
<body>
  <h2>Sales Report</h2>
  <p>Generated {{.GeneratedAt}} | Sales: {{.SaleCount}} | Revenue: {{.TotalRevenue.StringFixed 2}}</p>

  <h3>Daily Revenue</h3>
  <table>
    <thead><tr><th>Date</th><th>Revenue</th></tr></thead>
    <tbody>{{range .DailyRevenue}}<tr><td>{{.Date}}</td><td class="num">{{.Revenue.StringFixed 2}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Products by Units</h3>
  <table>
    <thead><tr><th>Product</th><th>Units</th></tr></thead>
    <tbody>{{range .TopByQuantity}}<tr><td>{{.ProductName}}</td><td class="num">{{.Quantity}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Products by Revenue</h3>
  <table>
    <thead><tr><th>Product</th><th>Revenue</th><th>Share %</th></tr></thead>
    <tbody>{{range .TopByRevenue}}<tr><td>{{.ProductName}}</td><td class="num">{{.Revenue.StringFixed 2}}</td><td class="num">{{printf "%.2f" .SharePercent}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Revenue by Hour</h3>
  <table>
    <thead><tr><th>Hour</th><th>Revenue</th></tr></thead>
    <tbody>{{range .RevenueByHour}}<tr><td>{{printf "%02d:00" .Hour}}</td><td class="num">{{.Revenue.StringFixed 2}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

var inventoryReportTmpl = template.Must(template.New("inventory-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Inventory Report</title>
  <style>` + reportStyle + `</style>
</head>
<body>
  <h2>Inventory Report</h2>
  <p>Generated {{.GeneratedAt}} | Products: {{.ProductCount}} | Units: {{.TotalUnits}} | Stock value: {{.TotalStockValue.StringFixed 2}}</p>

  <h3>Units by Category</h3>
  <table>
    <thead><tr><th>Category</th><th>Units</th><th>Share %</th></tr></thead>
    <tbody>{{range .ByCategory}}<tr><td>{{.Category}}</td><td class="num">{{.Quantity}}</td><td class="num">{{printf "%.2f" .SharePercent}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Products by Stock Value</h3>
  <table>
    <thead><tr><th>Product</th><th>Units</th><th>Value</th></tr></thead>
    <tbody>{{range .TopByValue}}<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.StockValue.StringFixed 2}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Products by Units</h3>
  <table>
    <thead><tr><th>Product</th><th>Units</th><th>Value</th></tr></thead>
    <tbody>{{range .TopByQuantity}}<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.StockValue.StringFixed 2}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Price Distribution</h3>
  <table>
    <thead><tr><th>From</th><th>To</th><th>Products</th></tr></thead>
    <tbody>{{range .PriceHistogram}}<tr><td class="num">{{.From.StringFixed 2}}</td><td class="num">{{.To.StringFixed 2}}</td><td class="num">{{.Count}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func salesReportToHTML(report domain.SalesReport) string {
	return renderReport(salesReportTmpl, report)
}

func inventoryReportToHTML(report domain.InventoryReport) string {
	return renderReport(inventoryReportTmpl, report)
}

func renderReport(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
