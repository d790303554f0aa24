package livestock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// TitleToken identifies the stock message among the channel history.
const TitleToken = "STORE STOCK"

// StockLevel is the traffic-light status of one product.
type StockLevel string

const (
	LevelPlenty StockLevel = "green"
	LevelLow    StockLevel = "yellow"
	LevelEmpty  StockLevel = "red"
)

var levelMarks = map[StockLevel]string{
	LevelPlenty: "🟢",
	LevelLow:    "🟡",
	LevelEmpty:  "🔴",
}

// LevelFor classifies count against the alert threshold.
func LevelFor(count, alert int64) StockLevel {
	switch {
	case count > alert:
		return LevelPlenty
	case count > 0:
		return LevelLow
	default:
		return LevelEmpty
	}
}

// Item is one product row of a snapshot.
type Item struct {
	Code  string     `json:"code"`
	Name  string     `json:"name"`
	Price string     `json:"price"`
	Stock int64      `json:"stock"`
	Level StockLevel `json:"level"`
}

// Section groups the items of one category.
type Section struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// Snapshot is the renderable state of the stock display.
type Snapshot struct {
	Maintenance bool      `json:"maintenance"`
	Sections    []Section `json:"sections"`
	TakenAt     time.Time `json:"taken_at"`
}

// Render formats s as message content.
func (s Snapshot) Render() string {
	var b strings.Builder
	b.WriteString("🏪 " + TitleToken + " 🏪\n")
	if s.Maintenance {
		b.WriteString("\n🔧 The store is under maintenance. Please come back later.\n")
		return b.String()
	}
	if len(s.Sections) == 0 {
		b.WriteString("\nNo products available yet.\n")
	}
	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "\n── %s ──\n", sec.Category)
		for _, it := range sec.Items {
			fmt.Fprintf(&b, "%s %s (%s)\n   Price: %s | Stock: %d\n",
				levelMarks[it.Level], it.Name, it.Code, it.Price, it.Stock)
		}
	}
	fmt.Fprintf(&b, "\nLast updated: %s UTC", s.TakenAt.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

// Fingerprint hashes everything the shopper sees except the timestamp, so
// an unchanged catalogue hashes the same across refreshes.
func (s Snapshot) Fingerprint(controls []Control) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatBool(s.Maintenance))
	for _, sec := range s.Sections {
		_, _ = d.WriteString("\x00" + sec.Category)
		for _, it := range sec.Items {
			_, _ = d.WriteString("\x01" + it.Code + "\x02" + it.Name + "\x02" + it.Price + "\x02" + strconv.FormatInt(it.Stock, 10))
		}
	}
	for _, c := range controls {
		_, _ = d.WriteString("\x03" + string(c.ID))
		for _, o := range c.Options {
			_, _ = d.WriteString("\x04" + o.Value + "\x02" + o.Label)
		}
	}
	return d.Sum64()
}
