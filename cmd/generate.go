package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <product-id>",
	Short: "Start 3D model generation for a product",
	Long: `Enqueues a generation job for the given product. The worker drives the
external service to completion and downloads the produced assets; progress is
visible via "arforge tasks".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		productID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || productID <= 0 {
			return fmt.Errorf("invalid product id %q", args[0])
		}

		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if err := appInstance.GenerationService.StartGeneration(cmd.Context(), productID); err != nil {
			return fmt.Errorf("failed to start generation: %w", err)
		}

		fmt.Printf("Generation enqueued for product %d.\n", productID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
