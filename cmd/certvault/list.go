package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	listClass   string
	listExpired bool
	listKeys    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored certificates and keys",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listClass, "class", "", "Filter by class: RootCA, IntermediateCA, Leaf")
	listCmd.Flags().BoolVar(&listExpired, "expired", false, "Show only expired certificates")
	listCmd.Flags().BoolVar(&listKeys, "keys", false, "List keys instead of certificates")
}

func runList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(false)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if listKeys {
		keys, err := store.AllKeys()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tNAME\tALGORITHM\tBITS\tCERT")
		for _, k := range keys {
			cert := "-"
			if k.CertificateID != nil {
				cert = fmt.Sprint(*k.CertificateID)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", k.ID, k.Name, k.Algorithm, k.BitLength, cert)
		}
		return nil
	}

	certs, err := store.AllCertificates()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "ID\tNAME\tCLASS\tEXPIRES\tPARENT\tTRUSTED")
	for _, c := range certs {
		if listClass != "" && c.Class != listClass {
			continue
		}
		if listExpired && !c.Expired {
			continue
		}
		parent := "-"
		if c.ParentID != nil {
			parent = fmt.Sprint(*c.ParentID)
		}
		trusted := ""
		if c.TrustedRoot {
			trusted = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Class, c.NotAfter.Format("2006-01-02"), parent, trusted)
	}
	return nil
}
