package report

import (
	"fmt"
	"strings"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// chatListLimit caps list sections in the chat rendering so the message
// fits typical gateway size limits.
const chatListLimit = 5

// Subject builds the mail subject line for a report.
func Subject(rep *models.ReportModel) string {
	return fmt.Sprintf("Relatório de Estoque - %s - %s", rep.TenantName, rep.GeneratedAt.Format("02/01/2006"))
}

// FormatText renders the compact line-oriented report used by the chat
// channel and as the text/plain part of the mail. Empty sections are
// omitted entirely.
func FormatText(rep *models.ReportModel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📦 Relatório de Estoque — %s\n", rep.TenantName)
	fmt.Fprintf(&b, "Gerado em %s\n\n", rep.GeneratedAt.Format("02/01/2006 15:04"))

	fmt.Fprintf(&b, "Produtos: %d | Categorias: %d | Fornecedores: %d\n",
		rep.Summary.TotalProducts, rep.Summary.TotalCategories, rep.Summary.TotalSuppliers)
	fmt.Fprintf(&b, "Valor total do estoque: R$ %s\n", rep.TotalValue.StringFixed(2))

	if len(rep.LowStock) > 0 {
		fmt.Fprintf(&b, "\n⚠️ ESTOQUE BAIXO (%d)\n", len(rep.LowStock))
		for i, item := range rep.LowStock {
			if i == chatListLimit {
				fmt.Fprintf(&b, "... e mais %d\n", len(rep.LowStock)-chatListLimit)
				break
			}
			fmt.Fprintf(&b, "- %s: %d/%d (%s)\n", item.Name, item.CurrentStock, item.MinStock, item.Category)
		}
	}

	if len(rep.OutOfStock) > 0 {
		fmt.Fprintf(&b, "\n⛔ SEM ESTOQUE (%d)\n", len(rep.OutOfStock))
		for i, item := range rep.OutOfStock {
			if i == chatListLimit {
				fmt.Fprintf(&b, "... e mais %d\n", len(rep.OutOfStock)-chatListLimit)
				break
			}
			fmt.Fprintf(&b, "- %s (%s)\n", item.Name, item.Category)
		}
	}

	if len(rep.Movements) > 0 {
		fmt.Fprintf(&b, "\n🔄 Movimentações nas últimas 24h: %d\n", len(rep.Movements))
	}

	return b.String()
}
