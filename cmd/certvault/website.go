package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cerbyon/certvault/internal/vaultstore"
)

var websiteCmd = &cobra.Command{
	Use:   "website",
	Short: "Manage website-to-certificate bindings",
}

var websiteAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Bind a website to its stored certificate",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebsiteAdd,
}

var websiteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List website bindings",
	RunE:  runWebsiteList,
}

func init() {
	websiteCmd.AddCommand(websiteAddCmd)
	websiteCmd.AddCommand(websiteListCmd)
}

func runWebsiteAdd(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	ok := false
	defer func() { closeStore(ok) }()

	binding, err := vaultstore.BindWebsite(store, args[0])
	if err != nil {
		return err
	}
	if binding.CertificateID != nil {
		fmt.Printf("Bound %s to certificate %d\n", binding.Domain, *binding.CertificateID)
	} else {
		fmt.Printf("Saved %s, no matching certificate yet\n", binding.Domain)
	}
	ok = true
	return nil
}

func runWebsiteList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(false)

	bindings, err := store.AllBindings()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tDOMAIN\tURL\tCERT")
	for _, b := range bindings {
		cert := "-"
		if b.CertificateID != nil {
			cert = fmt.Sprint(*b.CertificateID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.ID, b.Domain, b.URL, cert)
	}
	return nil
}
