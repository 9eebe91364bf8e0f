package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cerbyon/certvault/internal/vaultstore"
)

var reconcileRelink bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Refresh expiry flags and repair chain links",
	Long:  "Recompute the stored expired flag of every certificate, re-match unbound websites, and optionally rebuild all chain links from scratch.",
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileRelink, "relink", false, "Rebuild all chain links")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	ok := false
	defer func() { closeStore(ok) }()

	changed, err := vaultstore.ReconcileExpiry(store)
	if err != nil {
		return err
	}
	fmt.Printf("Updated expiry flag on %d certificate(s)\n", changed)

	rebound, err := vaultstore.RebindWebsites(store)
	if err != nil {
		return err
	}
	if rebound > 0 {
		fmt.Printf("Bound %d website(s) to certificates\n", rebound)
	}

	if reconcileRelink {
		if err := vaultstore.NewLinker(store).Relink(); err != nil {
			return err
		}
		fmt.Println("Rebuilt chain links")
	}

	ok = true
	return nil
}
