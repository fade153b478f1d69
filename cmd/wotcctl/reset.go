package main

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/edvart/wotc-admin/internal/store"
)

type resetCmd struct {
	Target string `help:"What to delete." enum:"matches,all" default:"matches"`
	Yes    bool   `help:"Do not ask for confirmation." short:"y"`
}

func (c *resetCmd) Run(g *globalCmd) error {
	if !c.Yes {
		msg := "Delete all matches, weekly sets and vote tallies?"
		if c.Target == string(store.ResetAll) {
			msg = "Delete EVERYTHING in the store, including teams, users and sessions?"
		}
		confirmed := false
		if err := survey.AskOne(&survey.Confirm{Message: msg}, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted")
			return nil
		}
	}

	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Reset(ctx, store.ResetTarget(c.Target)); err != nil {
		return err
	}
	fmt.Printf("Reset %s\n", c.Target)
	return nil
}
