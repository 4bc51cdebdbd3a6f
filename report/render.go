package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignRight,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

func render(w io.Writer, header []string, rows [][]string) error {
	table := newTable(w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func RenderMerchants(w io.Writer, stats []MerchantStat) error {
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.MerchantName,
			strconv.FormatInt(s.Orders, 10),
			money(s.Revenue),
			money(s.AvgOrderValue),
			strconv.FormatFloat(s.AvgDeliveryMinutes, 'f', 1, 64),
		})
	}
	return render(w, []string{"RANK", "MERCHANT", "ORDERS", "REVENUE", "AVG ORDER", "AVG DELIVERY MIN"}, rows)
}

func RenderHours(w io.Writer, stats []HourStat) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			fmt.Sprintf("%02d:00", s.Hour),
			s.DayPart,
			strconv.FormatInt(s.Orders, 10),
			money(s.Revenue),
		})
	}
	return render(w, []string{"HOUR", "DAY PART", "ORDERS", "REVENUE"}, rows)
}

func RenderSeasonality(w io.Writer, stats []PeriodStat) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		growth := "-"
		if s.Growth != nil {
			growth = fmt.Sprintf("%+.1f%%", *s.Growth)
		}
		rows = append(rows, []string{
			s.Label,
			strconv.FormatInt(s.Orders, 10),
			money(s.Revenue),
			growth,
		})
	}
	return render(w, []string{"PERIOD", "ORDERS", "REVENUE", "GROWTH"}, rows)
}
