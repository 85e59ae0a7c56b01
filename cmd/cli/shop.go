package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/prisvakt/compliance-service/internal/database"
)

var (
	shopToken    string
	shopCountry  string
	shopInactive bool
)

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Manage registered shops",
}

var shopAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Register a shop or update its settings",
	Example: `  compliance shop add demo.myshop.no --token shpat_xxx
  compliance shop add demo.myshop.no --token shpat_xxx --inactive`,
	Args:        cobra.ExactArgs(1),
	Annotations: serviceAnnotations(),
	RunE:        runShopAdd,
}

var shopListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List active shops",
	Args:        cobra.NoArgs,
	Annotations: serviceAnnotations(),
	RunE:        runShopList,
}

func init() {
	rootCmd.AddCommand(shopCmd)
	shopCmd.AddCommand(shopAddCmd)
	shopCmd.AddCommand(shopListCmd)

	shopAddCmd.Flags().StringVar(&shopToken, "token", "", "Admin API access token")
	shopAddCmd.Flags().StringVar(&shopCountry, "country", "NO", "Country whose rules apply")
	shopAddCmd.Flags().BoolVar(&shopInactive, "inactive", false, "Register without scheduling scans")
	shopAddCmd.MarkFlagRequired("token")
}

func runShopAdd(cmd *cobra.Command, args []string) error {
	shop, err := svc.Store.UpsertShop(cmd.Context(), database.Shop{
		Domain:      strings.ToLower(args[0]),
		AccessToken: shopToken,
		CountryCode: strings.ToUpper(shopCountry),
		Active:      !shopInactive,
	})
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	fmt.Printf("Shop %s saved (country %s, active %t)\n", shop.Domain, shop.CountryCode, shop.Active)
	return nil
}

func runShopList(cmd *cobra.Command, args []string) error {
	shops, err := svc.Store.ActiveShops(cmd.Context(), time.Now().UTC())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tCOUNTRY\tLAST SCANNED")
	for _, s := range shops {
		last := "never"
		if s.LastScannedAt != nil {
			last = s.LastScannedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Domain, s.CountryCode, last)
	}
	return w.Flush()
}
