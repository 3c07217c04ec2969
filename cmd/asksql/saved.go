package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/spf13/cobra"
)

func newSavedCmd(run runnerFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved queries",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved queries, newest first",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			svc, err := savedService(ctx, a)
			if err != nil {
				return err
			}
			qs, err := svc.List(ctx, search)
			if err != nil {
				return err
			}
			return a.render.savedList(qs)
		}),
	}
	list.Flags().StringVarP(&search, "search", "s", "", "filter by name, question or tag")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved query",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := savedService(ctx, a)
			if err != nil {
				return err
			}
			q, err := svc.Get(ctx, id)
			if err != nil {
				return err
			}
			return a.render.saved(q)
		}),
	}

	runCmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a saved query through the read-only gate",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svcs, err := a.services(ctx, true)
			if err != nil {
				return err
			}
			q, res, err := svcs.Saved.RunSaved(service.WithSource(ctx, sourceCLI), id)
			if err != nil {
				return err
			}
			if a.render.format == outputTable {
				a.render.prepared(&service.Prepared{Question: q.Question, SQL: q.SQL})
			}
			return a.render.result(res)
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := savedService(ctx, a)
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, id); err != nil {
				return err
			}
			return a.render.message("deleted saved query #%d", id)
		}),
	}

	cmd.AddCommand(list, show, runCmd, del)
	return cmd
}

// savedService opens only the saved-query store; listing, showing and
// deleting never touch the analytical database.
func savedService(ctx context.Context, a *app) (*service.SavedQueryService, error) {
	store, err := a.savedStore(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewSavedQueryService(store, nil, a.logger), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
