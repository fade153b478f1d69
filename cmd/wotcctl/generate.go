package main

import (
	"context"
	"fmt"

	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/schollz/progressbar/v3"
)

type generateCmd struct {
	Week  int `help:"Week number; matches are appended to week-<n>." required:""`
	Count int `help:"Number of matches to create." default:"5"`
}

func (c *generateCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	bar := progressbar.Default(int64(c.Count), "generating")
	ids, err := a.publisher.GenerateWeek(ctx, publish.GenerateOptions{
		Week:    c.Week,
		Count:   c.Count,
		OnMatch: func(*store.Match) { bar.Add(1) },
	})
	bar.Finish()
	if err != nil {
		return err
	}
	fmt.Printf("Created %d matches in %s: %v\n", len(ids), publish.WeekKey(c.Week), ids)
	return nil
}
