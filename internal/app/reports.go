/**
 * @description
 * Digest composition for the weekly and monthly SMS summaries. Pure text
 * formatting over pre-aggregated rows; the jobs own the queries and the
 * delivery.
 */
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/cjflanagan1/FamilyBudget/internal/domain"
)

// ComposeWeeklyDigest formats the trailing-week summary: per-person totals
// (flagged when the person sits at 90%+ of their monthly limit), a grand
// total, and the top merchants of the week.
func ComposeWeeklyDigest(start, end time.Time, rows []domain.PersonSpend, topMerchants []domain.MerchantTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[FamilyBudget] Weekly Summary (%s - %s)\n", shortDate(start), shortDate(end))

	var grandTotal float64
	for _, row := range rows {
		warning := ""
		if row.MonthlyLimit != nil && *row.MonthlyLimit > 0 && row.MonthlyTotal/(*row.MonthlyLimit) >= 0.9 {
			warning = " ⚠️"
		}
		fmt.Fprintf(&b, "%s: %s%s\n", row.Name, formatCurrency(row.WindowTotal), warning)
		grandTotal += row.WindowTotal
	}

	fmt.Fprintf(&b, "---\nTotal: %s", formatCurrency(grandTotal))

	if len(topMerchants) > 0 {
		parts := make([]string, 0, len(topMerchants))
		for _, m := range topMerchants {
			parts = append(parts, fmt.Sprintf("%s (%s)", m.MerchantName, formatCurrency(m.Total)))
		}
		fmt.Fprintf(&b, "\nTop: %s", strings.Join(parts, ", "))
	}
	return b.String()
}

// ComposeMonthlyDigest formats the prior-calendar-month summary: per-person
// totals against limits, a grand total, and a category breakdown.
func ComposeMonthlyDigest(month time.Time, rows []domain.PersonSpend, categories []domain.CategoryTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[FamilyBudget] Monthly Summary - %s\n\n", month.Format("January 2006"))

	var grandTotal float64
	for _, row := range rows {
		limitInfo := ""
		overLimit := ""
		if row.MonthlyLimit != nil && *row.MonthlyLimit > 0 {
			limitInfo = fmt.Sprintf(" (limit: %s)", formatCurrency(*row.MonthlyLimit))
			if row.WindowTotal > *row.MonthlyLimit {
				overLimit = " 🚨"
			}
		}
		fmt.Fprintf(&b, "%s: %s%s%s\n", row.Name, formatCurrency(row.WindowTotal), limitInfo, overLimit)
		grandTotal += row.WindowTotal
	}

	fmt.Fprintf(&b, "\n📊 Total: %s", formatCurrency(grandTotal))

	if len(categories) > 0 {
		b.WriteString("\n\nBy Category:")
		for _, cat := range categories {
			fmt.Fprintf(&b, "\n• %s: %s", cat.Category, formatCurrency(cat.Total))
		}
	}
	return b.String()
}

func shortDate(t time.Time) string {
	return t.Format("Jan 2")
}
