package commands

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/tool"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the advertised tool descriptors as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Descriptors do not depend on the provider.
		unused := tool.ReferenceProviderFunc(func(context.Context, types.DocumentLocation, bool) ([]types.Location, error) {
			return nil, errors.New("no reference provider")
		})
		registry := tool.DefaultRegistry(unused, nil)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tools": registry.List()})
	},
}
