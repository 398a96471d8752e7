package main

import (
	"encoding/json"
	"fmt"

	"github.com/automax/routing/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func rebuildPlatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-plates",
		Short: "Recompute every group plate from the parent links",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.groupTree.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d plates updated\n", updated)
			return nil
		},
	}
}

func deriveCommand() *cobra.Command {
	var state int
	var district uint

	cmd := &cobra.Command{
		Use:   "derive <record-card-id>",
		Short: "Show which group a record card would be derived to, without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid record card id %q: %w", args[0], err)
			}
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			var districtID *uint
			if district > 0 {
				districtID = &district
			}
			derivation, err := a.recordCards.PreviewDerivation(cmd.Context(), id, models.RecordState(state), districtID)
			if err != nil {
				return err
			}

			out := map[string]interface{}{"strategy": derivation.Strategy}
			if derivation.Group != nil {
				out["group"] = models.ToGroupResponse(derivation.Group)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&state, "state", int(models.StatePendingValidate), "target record state (0-8)")
	cmd.Flags().UintVar(&district, "district", 0, "explicit district id")
	return cmd
}
