package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/jedib0t/go-pretty/v6/table"
)

type setsCmd struct{}

func (c *setsCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sets, err := a.store.ListWeeklySets(ctx)
	if err != nil {
		return err
	}
	renderSets(os.Stdout, sets)
	return nil
}

func renderSets(w io.Writer, sets []store.WeeklySet) {
	sort.Slice(sets, func(i, j int) bool {
		ni, iok := publish.ParseWeekKey(sets[i].DateKey)
		nj, jok := publish.ParseWeekKey(sets[j].DateKey)
		if iok && jok {
			return ni < nj
		}
		if iok != jok {
			return iok
		}
		return sets[i].DateKey < sets[j].DateKey
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Key", "Published", "Matches", "Match IDs", "Updated"})
	for _, s := range sets {
		published := ""
		if s.Published {
			published = "yes"
		}
		t.AppendRow(table.Row{s.DateKey, published, len(s.MatchIDs), strings.Join(s.MatchIDs, ","), s.UpdatedAt.Local().Format("2006-01-02 15:04")})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

type publishCmd struct {
	DateKey   string   `arg:"" help:"Weekly set key, e.g. week-3."`
	Match     []string `help:"Match IDs to put in the set. Keeps the current list when omitted." short:"m"`
	Exclusive bool     `help:"Unpublish every other set." short:"x"`
	Unpublish bool     `help:"Save the set unpublished."`
}

func (c *publishCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	matchIDs := c.Match
	if len(matchIDs) == 0 {
		existing, err := a.store.GetWeeklySet(ctx, c.DateKey)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("weekly set %s does not exist; pass --match", c.DateKey)
		}
		matchIDs = existing.MatchIDs
	}

	set, err := a.publisher.SetWeeklySet(ctx, c.DateKey, matchIDs, !c.Unpublish, c.Exclusive)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s with %d matches (published=%v)\n", set.DateKey, len(set.MatchIDs), set.Published)
	return nil
}

type activeCmd struct {
	DateKey string `arg:"" optional:"" default:"latest" help:"Requested key; falls back to the latest published week."`
}

func (c *activeCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	daily, err := a.publisher.ActiveMatches(ctx, c.DateKey)
	if err != nil {
		return err
	}
	renderDaily(os.Stdout, daily)
	return nil
}

func renderDaily(w io.Writer, daily *publish.DailyMatches) {
	fmt.Fprintf(w, "Active set: %s\n", daily.DateKey)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Home", "Away", "League", "Kickoff"})
	for _, m := range daily.Matches {
		t.AppendRow(table.Row{m.ID, m.HomeTeam.Name, m.AwayTeam.Name, m.League, m.KickoffAt})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
