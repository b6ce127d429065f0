package cli

import (
	"fmt"
	"strconv"

	"github.com/plantitas/plantitas/internal/session"
	"github.com/spf13/cobra"
)

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "List and manage product categories",
		Long: `List and manage product categories. Changing categories requires the bodeguero
or admin role.

Examples:
  plantitas categories list
  plantitas categories create Macetas
  plantitas categories rename 5 "Maceteros"
  plantitas categories delete 5`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := activeSession("")
			if err != nil {
				return err
			}
			cats, err := s.Shop().ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, cats, func(w output) {
				tw := w.table("ID", "NAME")
				for _, c := range cats {
					row(tw, c.ID, c.Name)
				}
				tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			c, err := s.Shop().CreateCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, c, func(w output) {
				okLabel.Fprintf(w.w, "✓ Created category %d: %s\n", c.ID, c.Name)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			c, err := s.Shop().RenameCategory(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return render(cmd, c, func(w output) {
				okLabel.Fprintf(w.w, "✓ Renamed category %d to %s\n", c.ID, c.Name)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category that no product uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			if err := s.Shop().DeleteCategory(cmd.Context(), id); err != nil {
				return err
			}
			return render(cmd, map[string]int{"result": 1, "deleted": id}, func(w output) {
				okLabel.Fprintf(w.w, "✓ Deleted category %d\n", id)
			})
		},
	})
	return cmd
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive number", s)
	}
	return id, nil
}
