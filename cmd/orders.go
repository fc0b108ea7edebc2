package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dispatchkit/dispatchboard/app"
	"github.com/dispatchkit/dispatchboard/config"
)

var ordersSearch string

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders known to the resource store",
	RunE:  listOrders,
}

func init() {
	ordersCmd.Flags().StringVar(&ordersSearch, "search", "", "filter by notes or barcode")
	rootCmd.AddCommand(ordersCmd)
}

func listOrders(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if _, err := svc.Orders.Orders(ctx); err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}
	ids := svc.Orders.OrderIDsBySearch(ordersSearch)
	for _, id := range ids {
		o, ok := svc.Orders.OrderByID(id)
		if !ok {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\tactive=%t\n", o.ID, o.OrderType, o.Barcode, o.Active)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d orders\n", len(ids))
	return nil
}
