package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/jedib0t/go-pretty/v6/table"
	excelize "github.com/xuri/excelize/v2"
)

var statColumns = []string{store.PickHome, store.PickDraw, store.PickAway, store.PickOver, store.PickUnder}

type statsCmd struct {
	DateKey string `arg:"" help:"Weekly set key, e.g. week-3."`
	XLSX    string `help:"Write an Excel workbook to this path or gs://bucket/object URL instead of printing." name:"xlsx"`
}

func (c *statsCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.tally.SetStats(ctx, c.DateKey)
	if err != nil {
		return err
	}

	if c.XLSX == "" {
		renderStats(os.Stdout, stats)
		return nil
	}

	book, err := statsWorkbook(c.DateKey, stats)
	if err != nil {
		return err
	}
	w, err := openFileOrGSWriter(ctx, c.XLSX)
	if err != nil {
		return err
	}
	if _, err := book.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d matches to %s\n", len(stats), c.XLSX)
	return nil
}

func sortedMatchIDs(stats map[string]store.MatchStats) []string {
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func renderStats(w io.Writer, stats map[string]store.MatchStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := table.Row{"Match"}
	for _, col := range statColumns {
		header = append(header, col)
	}
	t.AppendHeader(header)
	for _, id := range sortedMatchIDs(stats) {
		row := table.Row{id}
		for _, col := range statColumns {
			row = append(row, stats[id][col])
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// statsWorkbook lays the tallies out one match per row, one pick per column.
func statsWorkbook(dateKey string, stats map[string]store.MatchStats) (*excelize.File, error) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(book.GetActiveSheetIndex())
	if err := book.SetSheetName(sheet, dateKey); err != nil {
		return nil, err
	}
	sheet = dateKey

	headers := append([]string{"Match"}, statColumns...)
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		book.SetCellStr(sheet, cell, h)
	}

	for i, id := range sortedMatchIDs(stats) {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		book.SetCellStr(sheet, cell, id)
		for col, pick := range statColumns {
			cell, err := excelize.CoordinatesToCellName(col+2, row)
			if err != nil {
				return nil, err
			}
			if err := book.SetCellInt(sheet, cell, int(stats[id][pick])); err != nil {
				return nil, err
			}
		}
	}
	return book, nil
}

func openFileOrGSWriter(ctx context.Context, f string) (io.WriteCloser, error) {
	u, err := url.Parse(f)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "gs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		// URL path has a leading slash; object names do not.
		obj := client.Bucket(u.Host).Object(strings.TrimPrefix(u.Path, "/"))
		return obj.NewWriter(ctx), nil
	case "file", "":
		return os.Create(u.Path)
	default:
		return nil, fmt.Errorf("unable to determine how to open '%s'", f)
	}
}
