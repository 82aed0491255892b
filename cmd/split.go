package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/clearway/settle/internal/rates"
	"github.com/clearway/settle/pkg/types"
	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Preview a payment split without touching engine state",
	Long: `Computes the rate-schedule split for a payment amount and prints
each party's share. Useful for verifying a split configuration before
registering it with a running engine.

Amounts are in the token's smallest unit.`,
	RunE: runSplit,
}

var (
	splitAmount      int64
	splitLayer       string
	splitReferrer    bool
	splitExecutor    bool
	splitExecAccount bool
	splitScanned     string
)

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().Int64VarP(&splitAmount, "amount", "a", 0, "Payment amount in smallest unit (required)")
	splitCmd.Flags().StringVarP(&splitLayer, "layer", "l", "LOGIC", "Product layer: INFRA, RESOURCE, LOGIC, COMPOSITE")
	splitCmd.Flags().BoolVar(&splitReferrer, "referrer", false, "A referrer participates")
	splitCmd.Flags().BoolVar(&splitExecutor, "executor", false, "An executor participates")
	splitCmd.Flags().BoolVar(&splitExecAccount, "executor-account", true, "The executor has a receiving account")
	splitCmd.Flags().StringVar(&splitScanned, "scanned", "", "Compute a scanned-product surcharge instead: STANDARD or MICRO")

	_ = splitCmd.MarkFlagRequired("amount")
}

func runSplit(cmd *cobra.Command, args []string) error {
	amount := types.Amount(splitAmount)

	if splitScanned != "" {
		return printScanned(amount)
	}

	layer := rates.Layer(strings.ToUpper(splitLayer))
	result, err := rates.Calculate(amount, layer, splitReferrer, splitExecutor, splitExecAccount)
	if err != nil {
		return fmt.Errorf("calculate split: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Layer:\t%s\n", layer)
	fmt.Fprintf(w, "Amount:\t%d\n", amount)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Merchant:\t%d\n", result.Merchant)
	fmt.Fprintf(w, "Platform:\t%d\n", result.Platform)
	fmt.Fprintf(w, "Executor:\t%d\n", result.Executor)
	fmt.Fprintf(w, "Referrer:\t%d\n", result.Referrer)
	fmt.Fprintf(w, "Treasury:\t%d\n", result.Treasury)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Total:\t%d\n", result.Total())
	return w.Flush()
}

func printScanned(price types.Amount) error {
	class := rates.ScannedClass(strings.ToUpper(splitScanned))
	result, err := rates.CalculateScanned(price, class, splitReferrer)
	if err != nil {
		return fmt.Errorf("calculate scanned surcharge: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Class:\t%s\n", class)
	fmt.Fprintf(w, "Price:\t%d\n", price)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Surcharge:\t%d\n", result.Surcharge)
	fmt.Fprintf(w, "Referrer:\t%d\n", result.Referrer)
	fmt.Fprintf(w, "Platform:\t%d\n", result.Platform)
	return w.Flush()
}
