package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nourabuild/advisory-service/internal/sdk/models"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
)

var seedPosts = []models.NewBlogPost{
	{
		Title:     "How to Qualify for a Loan Against Property",
		Slug:      "qualify-loan-against-property",
		Excerpt:   "What lenders look at before sanctioning a loan against your residential or commercial property.",
		Content:   "Lenders assess the market value of the property, your income stability and your repayment history. Most banks finance 50 to 70 percent of the assessed value. Keep title documents, tax receipts and the approved building plan ready before you apply.",
		Author:    "Advisory Team",
		Category:  "Property Loans",
		Published: true,
	},
	{
		Title:     "Working Capital Through Cash Credit",
		Slug:      "working-capital-cash-credit",
		Excerpt:   "Cash credit limits help businesses smooth out cash flow. Here is how they are sized.",
		Content:   "A cash credit limit is usually sized on your stock and receivables. Banks review the limit every year against audited financials and stock statements. Interest is charged only on the amount you draw.",
		Author:    "Advisory Team",
		Category:  "Business Finance",
		Published: true,
	},
	{
		Title:     "Understanding Your EMI",
		Slug:      "understanding-your-emi",
		Excerpt:   "How the monthly installment is calculated and what changes it the most.",
		Content:   "Your EMI depends on the principal, the interest rate and the tenure. A longer tenure lowers the installment but raises the total interest paid. Use the calculator to compare tenures before you commit.",
		Author:    "Advisory Team",
		Category:  "Guides",
		Published: true,
	},
}

// SeedBlogPosts inserts the starter posts when the blog is empty.
func SeedBlogPosts(ctx context.Context, db sqldb.Store) (int, error) {
	n, err := db.CountBlogPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("count blog posts: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	// Spread creation times so the newest-first order is stable.
	base := time.Now().UTC()
	for i, p := range seedPosts {
		p.CreatedAt = base.Add(-time.Duration(len(seedPosts)-i) * 24 * time.Hour)
		if _, err := db.CreateBlogPost(ctx, p); err != nil {
			return i, fmt.Errorf("seed %q: %w", p.Slug, err)
		}
	}
	return len(seedPosts), nil
}
