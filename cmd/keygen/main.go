// Command keygen mints license codes offline, for support workflows where
// a key is issued over the phone before the tenant record exists.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kdsops/internal/license"
	"kdsops/pkg/contracts/domain"
)

func main() {
	var (
		keyType string
		count   int
	)

	root := &cobra.Command{
		Use:   "keygen",
		Short: "Generate license codes",
		Long: `Generates opaque license codes in the standard format.

Codes printed here are not yet in the ledger; record them with the admin
API before handing them out, or they will not activate anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.KeyKind(keyType)
			switch kind {
			case domain.KeyLicense, domain.KeyMaster, domain.KeyBranch:
			default:
				return fmt.Errorf("unknown key type %q (want license, master or branch)", keyType)
			}
			if count < 1 || count > 1000 {
				return fmt.Errorf("count must be between 1 and 1000")
			}

			for i := 0; i < count; i++ {
				code, err := license.GenerateKey(kind)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}

	root.Flags().StringVarP(&keyType, "type", "t", string(domain.KeyLicense), "key type: license, master or branch")
	root.Flags().IntVarP(&count, "count", "n", 1, "number of codes to generate")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
