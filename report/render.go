package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	accentColor = lipgloss.Color("#FF6600")
	mutedColor  = lipgloss.Color("#6B7280")
	goodColor   = lipgloss.Color("#22C55E")
	badColor    = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	statValue = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	statLabel = lipgloss.NewStyle().Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	belowStyle  = cellStyle.Foreground(goodColor)
	aboveStyle  = cellStyle.Foreground(badColor)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

const gapColumn = 5

// Render writes the dashboard as KPI cards followed by a per-item table
func Render(w io.Writer, d *Dashboard) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("D2C Competitive Intelligence"))
	b.WriteString("\n")

	if len(d.Items) == 0 {
		b.WriteString(mutedStyle.Render("No catalog snapshots stored yet."))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	cards := []string{
		card("Competitive Set", strconv.Itoa(d.CompetitiveSet)),
		card("Avg. Market Price", formatPrice(d.AvgPrice)),
		card("Mean Market Rating", formatRating(d.MeanRating)),
		card("Reviews Logged", groupThousands(d.TotalReviews)),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n")

	gaps := make([]*float64, len(d.Items))
	rows := make([][]string, 0, len(d.Items))
	for i, item := range d.Items {
		gaps[i] = item.PriceGap
		rows = append(rows, []string{
			item.Brand,
			item.DisplayName,
			item.ASIN,
			formatPrice(item.Price),
			formatRange(item.PriceMin, item.PriceMax),
			formatGap(item.PriceGap),
			formatRating(item.Rating),
			formatCount(item.ReviewCount),
			strconv.Itoa(item.StoredReviews),
			strconv.Itoa(item.Snapshots),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("Brand", "Product", "ASIN", "Price", "Range", "Gap", "Rating", "Ratings", "Stored", "Snaps").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == gapColumn && row >= 0 && row < len(gaps) && gaps[row] != nil {
				if *gaps[row] < 0 {
					return belowStyle
				}
				if *gaps[row] > 0 {
					return aboveStyle
				}
			}
			return cellStyle
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Pricing Trends & Review Growth"))
	b.WriteString("\n")
	b.WriteString(renderTrends(d.Items))
	b.WriteString("\n")

	if !d.LatestCapture.IsZero() {
		b.WriteString(mutedStyle.Render("Synchronization timestamp: " + d.LatestCapture.Format("2006-01-02 15:04:05 MST")))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderTrends(items []ItemSummary) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		prices := make([]*float64, len(item.Trend))
		counts := make([]*float64, len(item.Trend))
		for i, p := range item.Trend {
			prices[i] = p.Price
			if p.ReviewCount != nil {
				c := float64(*p.ReviewCount)
				counts[i] = &c
			}
		}
		first, last := endpoints(prices)
		rows = append(rows, []string{
			item.DisplayName,
			sparkline(prices),
			formatPrice(first) + " → " + formatPrice(last),
			sparkline(counts),
			formatGrowth(counts),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("Product", "Price", "First → Last", "Reviews", "Growth").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values between their own min and max; missing values show as a dot
func sparkline(values []*float64) string {
	lo, hi := valueRange(values)
	if lo == nil {
		return "-"
	}

	var b strings.Builder
	for _, v := range values {
		switch {
		case v == nil:
			b.WriteRune('·')
		case *hi == *lo:
			b.WriteRune(sparkLevels[len(sparkLevels)/2-1])
		default:
			idx := int(math.Round((*v - *lo) / (*hi - *lo) * float64(len(sparkLevels)-1)))
			b.WriteRune(sparkLevels[idx])
		}
	}
	return b.String()
}

// endpoints returns the first and last non-nil values
func endpoints(values []*float64) (first, last *float64) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if first == nil {
			first = v
		}
		last = v
	}
	return first, last
}

func valueRange(values []*float64) (lo, hi *float64) {
	for _, v := range values {
		lo = minPtr(lo, v)
		hi = maxPtr(hi, v)
	}
	return lo, hi
}

func formatGrowth(counts []*float64) string {
	first, last := endpoints(counts)
	if first == nil {
		return "-"
	}
	delta := int64(math.Round(*last - *first))
	if delta >= 0 {
		return "+" + groupThousands(delta)
	}
	return groupThousands(delta)
}

func card(label, value string) string {
	return cardStyle.Render(statLabel.Render(label) + "\n" + statValue.Render(value))
}

func formatPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return "₹" + groupThousands(int64(math.Round(*v)))
}

func formatGap(v *float64) string {
	if v == nil {
		return "-"
	}
	sign := "+"
	if *v < 0 {
		sign = "-"
	}
	return sign + "₹" + groupThousands(int64(math.Round(math.Abs(*v))))
}

func formatRange(lo, hi *float64) string {
	if lo == nil || hi == nil {
		return "-"
	}
	if *lo == *hi {
		return formatPrice(lo)
	}
	return formatPrice(lo) + "–" + formatPrice(hi)
}

func formatRating(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func formatCount(v *int64) string {
	if v == nil {
		return "-"
	}
	return groupThousands(*v)
}

// groupThousands renders n with comma thousands separators
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
