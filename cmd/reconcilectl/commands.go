package main

import (
	"encoding/json"
	"fmt"
	"io"
	"storefront-payments/internal/model"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func failedCmd(load func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List captured payments that never became an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			transactions, err := a.admin.ListFailedCaptures(cmd.Context())
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return printTransactions(cmd.OutOrStdout(), transactions, asJSON)
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func transactionsCmd(load func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			a, err := load()
			if err != nil {
				return err
			}
			transactions, err := a.admin.ListTransactions(cmd.Context(), search)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return printTransactions(cmd.OutOrStdout(), transactions, asJSON)
		},
	}
	cmd.Flags().StringP("search", "s", "", "Match capture id, payer email or user id")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func statusCmd(load func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status [captureId]",
		Short: "Show the payment status of a capture as clients see it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			status, err := a.reconciler.GetPaymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}

func printTransactions(out io.Writer, transactions []*model.Transaction, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(transactions)
	}

	if len(transactions) == 0 {
		fmt.Fprintln(out, "no transactions")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CAPTURE\tPROVIDER\tUSER\tAMOUNT\tSTATUS\tORDER\tCAPTURED\tREASON")
	for _, t := range transactions {
		order := "-"
		if t.OrderID != nil {
			order = fmt.Sprint(*t.OrderID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Provider, t.UserID, t.Amount.StringFixed(2), t.Currency,
			t.Status, order, t.CapturedAt.Format(time.RFC3339), t.FailReason)
	}
	return w.Flush()
}
