package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saxa/pkbrokerd/internal/engine"
	"github.com/saxa/pkbrokerd/internal/ipc"
	"github.com/saxa/pkbrokerd/internal/jobtypes"
	applog "github.com/saxa/pkbrokerd/internal/log"
	"github.com/saxa/pkbrokerd/internal/txlist"
)

// refreshCacheCmd drives a single refresh-cache job against the built-in
// demo plugin and waits for it to finish. It is a one-shot, in-process
// stand-in for what a real client would do over an IPC connection: create
// a transaction, select a role, commit it, and watch for Finished.
var refreshCacheCmd = &cobra.Command{
	Use:   "refresh-cache",
	Short: "Submit a one-shot refresh-cache job against the demo plugin",
	RunE:  runRefreshCache,
}

func init() {
	rootCmd.AddCommand(refreshCacheCmd)
}

func runRefreshCache(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := engine.NewRegistry()
	registerBuiltinPlugins(registry)

	frontend := ipc.NewFrontend(applog.WithComponent("ipc"))
	list := txlist.New(ctx, registry, applog.WithComponent("engine"), 0, frontend)

	tid := ipc.NewTID()
	tx, err := list.Create(tid)
	if err != nil {
		return err
	}
	if err := tx.Engine().Load("dummy"); err != nil {
		return err
	}
	tx.SelectRefreshCache(false)

	finished := make(chan jobtypes.Exit, 1)
	sub := tx.Subscribe()
	go func() {
		for ev := range sub {
			if _, ok := ev.(engine.Finished); ok {
				tx.Unsubscribe(sub)
				finished <- tx.Engine().ExitTag()
				return
			}
		}
	}()

	if err := list.Commit(tid); err != nil {
		return err
	}

	select {
	case exit := <-finished:
		fmt.Printf("transaction %s finished: %s\n", tid, exit)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
