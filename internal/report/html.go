package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// mailTemplate is the HTML body of the report mail. Inline styles only:
// mail clients strip stylesheets.
const mailTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; max-width: 640px; margin: 0 auto;">
  <h2 style="border-bottom: 2px solid #2c7be5; padding-bottom: 8px;">📦 Relatório de Estoque — {{.TenantName}}</h2>
  <p style="color: #666;">Gerado em {{.GeneratedAt.Format "02/01/2006 15:04"}}</p>

  <table style="width: 100%; border-collapse: collapse; margin: 16px 0;">
    <tr>
      <td style="padding: 8px; background: #f5f7fa;">Produtos: <strong>{{.Summary.TotalProducts}}</strong></td>
      <td style="padding: 8px; background: #f5f7fa;">Categorias: <strong>{{.Summary.TotalCategories}}</strong></td>
      <td style="padding: 8px; background: #f5f7fa;">Fornecedores: <strong>{{.Summary.TotalSuppliers}}</strong></td>
    </tr>
  </table>
  <p>Valor total do estoque: <strong>R$ {{.TotalValue.StringFixed 2}}</strong></p>

{{if .LowStock}}
  <h3 style="color: #e6a700;">⚠️ Estoque baixo ({{len .LowStock}})</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <tr style="background: #fff6e0; text-align: left;">
      <th style="padding: 6px; border: 1px solid #eee;">Produto</th>
      <th style="padding: 6px; border: 1px solid #eee;">Estoque</th>
      <th style="padding: 6px; border: 1px solid #eee;">Mínimo</th>
      <th style="padding: 6px; border: 1px solid #eee;">Categoria</th>
    </tr>
    {{range .LowStock}}
    <tr>
      <td style="padding: 6px; border: 1px solid #eee;">{{.Name}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.CurrentStock}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.MinStock}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.Category}}</td>
    </tr>
    {{end}}
  </table>
{{end}}

{{if .OutOfStock}}
  <h3 style="color: #d6336c;">⛔ Sem estoque ({{len .OutOfStock}})</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <tr style="background: #ffe3ec; text-align: left;">
      <th style="padding: 6px; border: 1px solid #eee;">Produto</th>
      <th style="padding: 6px; border: 1px solid #eee;">Categoria</th>
    </tr>
    {{range .OutOfStock}}
    <tr>
      <td style="padding: 6px; border: 1px solid #eee;">{{.Name}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.Category}}</td>
    </tr>
    {{end}}
  </table>
{{end}}

{{if .Movements}}
  <h3 style="color: #2c7be5;">🔄 Movimentações nas últimas 24h ({{len .Movements}})</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <tr style="background: #e7f1ff; text-align: left;">
      <th style="padding: 6px; border: 1px solid #eee;">Produto</th>
      <th style="padding: 6px; border: 1px solid #eee;">Tipo</th>
      <th style="padding: 6px; border: 1px solid #eee;">Qtd</th>
      <th style="padding: 6px; border: 1px solid #eee;">Usuário</th>
      <th style="padding: 6px; border: 1px solid #eee;">Quando</th>
    </tr>
    {{range .Movements}}
    <tr>
      <td style="padding: 6px; border: 1px solid #eee;">{{.ProductName}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{if .IsEntry}}Entrada{{else}}Saída{{end}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.Quantity}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.UserName}}</td>
      <td style="padding: 6px; border: 1px solid #eee;">{{.CreatedAt.Format "02/01 15:04"}}</td>
    </tr>
    {{end}}
  </table>
{{end}}

  <p style="color: #999; font-size: 12px; margin-top: 24px;">
    Mensagem automática do stockwatch. Ajuste a frequência nas configurações da sua organização.
  </p>
</body>
</html>`

var mailTmpl = template.Must(template.New("mail").Parse(mailTemplate))

// RenderHTML renders the mail body for a report.
func RenderHTML(rep *models.ReportModel) (string, error) {
	var buf bytes.Buffer
	if err := mailTmpl.Execute(&buf, rep); err != nil {
		return "", fmt.Errorf("render mail template: %w", err)
	}
	return buf.String(), nil
}
