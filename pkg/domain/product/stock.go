package product

import (
	"strings"
	"time"
)

// StockStatus is the lifecycle state of one stock line.
type StockStatus string

const (
	StockAvailable StockStatus = "AVAILABLE"
	StockSold      StockStatus = "SOLD"
	StockDeleted   StockStatus = "DELETED"
)

// StockLine is one sellable unit. Content is globally unique and delivered
// verbatim to the buyer.
type StockLine struct {
	ID          int64       `json:"id"`
	ProductCode string      `json:"product_code"`
	Content     string      `json:"content"`
	Status      StockStatus `json:"status"`
	AddedBy     string      `json:"added_by"`
	BuyerHandle *string     `json:"buyer_handle,omitempty"`
	AddedAt     time.Time   `json:"added_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AddStockResult summarizes a multi-line stock ingest.
type AddStockResult struct {
	TotalLines   int `json:"total_lines"`
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// SourceStatus returns the only status a line may hold before moving to
// target. SOLD goes back to AVAILABLE only through a purchase rollback.
func SourceStatus(target StockStatus) (StockStatus, bool) {
	switch target {
	case StockSold, StockDeleted:
		return StockAvailable, true
	case StockAvailable:
		return StockSold, true
	default:
		return "", false
	}
}

// SplitStockLines returns the non-blank lines of content, trimmed.
func SplitStockLines(content string) []string {
	raw := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
