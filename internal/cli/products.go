package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/plantitas/plantitas/internal/common/money"
	"github.com/plantitas/plantitas/internal/session"
	"github.com/plantitas/plantitas/internal/shop"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product", "prod"},
		Short:   "Browse and manage the catalogue",
		Long: `Browse and manage the catalogue. Any logged-in user can browse. Changing products
requires the bodeguero or admin role.

Examples:
  plantitas products list --search ramo
  plantitas products get P001
  plantitas products create --sku PL-HELE-01 --name "Helecho" --price 8990 --stock 4 --category 2 --image helecho.jpg
  plantitas products update P001 --set price=14990 --set stock=10
  plantitas products stock P001 -- -2
  plantitas products apply -f catalogue.yaml`,
	}
	cmd.AddCommand(
		newProductsListCmd(),
		newProductsGetCmd(),
		newProductsCreateCmd(),
		newProductsUpdateCmd(),
		newProductsStockCmd(),
		newProductsDeleteCmd(),
		newProductsApplyCmd(),
	)
	return cmd
}

func printProducts(w output, products []shopapi.Product) {
	tw := w.table("ID", "SKU", "NAME", "CATEGORY", "PRICE", "STOCK")
	for _, p := range products {
		row(tw, p.ID, p.SKU, p.Name, p.CategoryName(), money.FormatCLP(p.Price), p.Stock)
	}
	tw.Flush()
}

func printProduct(w output, p *shopapi.Product) {
	w.printf("ID:       %s\n", p.ID)
	w.printf("SKU:      %s\n", p.SKU)
	w.printf("Name:     %s\n", p.Name)
	w.printf("Category: %s\n", p.CategoryName())
	w.printf("Price:    %s\n", money.FormatCLP(p.Price))
	w.printf("Stock:    %d\n", p.Stock)
	if p.Image != "" {
		w.printf("Image:    %s\n", p.Image)
	}
}

func newProductsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally matching a search on name or SKU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			s, err := activeSession("")
			if err != nil {
				return err
			}
			products, err := s.Shop().ListProducts(cmd.Context(), strings.TrimSpace(search))
			if err != nil {
				return err
			}
			return render(cmd, products, func(w output) {
				printProducts(w, products)
			})
		},
	}
	cmd.Flags().StringP("search", "s", "", "Match name or SKU")
	return cmd
}

func newProductsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := activeSession("")
			if err != nil {
				return err
			}
			p, err := s.Shop().GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, p, func(w output) { printProduct(w, p) })
		},
	}
}

func loadImageFlag(cmd *cobra.Command) (*shop.Image, error) {
	path, _ := cmd.Flags().GetString("image")
	if path == "" {
		return nil, nil
	}
	return shop.LoadImage(path)
}

func newProductsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := shopapi.ProductInput{}
			in.ID, _ = cmd.Flags().GetString("id")
			in.SKU, _ = cmd.Flags().GetString("sku")
			in.Name, _ = cmd.Flags().GetString("name")
			in.Price, _ = cmd.Flags().GetInt64("price")
			in.Stock, _ = cmd.Flags().GetInt("stock")
			in.CategoryID, _ = cmd.Flags().GetInt("category")

			img, err := loadImageFlag(cmd)
			if err != nil {
				return err
			}
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			p, err := s.Shop().CreateProduct(cmd.Context(), in, img)
			if err != nil {
				return err
			}
			return render(cmd, p, func(w output) {
				okLabel.Fprintf(w.w, "✓ Created product %s\n", p.ID)
				printProduct(w, p)
			})
		},
	}
	cmd.Flags().String("id", "", "Product id (assigned by the server when empty)")
	cmd.Flags().String("sku", "", "Stock keeping unit")
	cmd.Flags().String("name", "", "Product name")
	cmd.Flags().Int64("price", 0, "Price in pesos")
	cmd.Flags().Int("stock", 0, "Units in stock")
	cmd.Flags().Int("category", 0, "Category id")
	cmd.Flags().String("image", "", "Path to a product picture")
	return cmd
}

func newProductsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update ID --set key=value ...",
		Short: "Change product fields or its picture",
		Long: `Change product fields or its picture. Settable keys are sku, name, price, stock and
category_id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, _ := cmd.Flags().GetStringArray("set")
			patch, err := productPatchFromSet(set)
			if err != nil {
				return err
			}
			img, err := loadImageFlag(cmd)
			if err != nil {
				return err
			}
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			p, err := s.Shop().UpdateProduct(cmd.Context(), args[0], patch, img)
			if err != nil {
				return err
			}
			return render(cmd, p, func(w output) {
				okLabel.Fprintf(w.w, "✓ Updated product %s\n", p.ID)
				printProduct(w, p)
			})
		},
	}
	cmd.Flags().StringArray("set", nil, "Field to change as key=value (repeatable)")
	cmd.Flags().String("image", "", "Path to a new product picture")
	return cmd
}

func newProductsStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stock ID DELTA",
		Short: "Add to or remove from the stock of a product",
		Long: `Add to or remove from the stock of a product. Stock never drops below zero. Use
"--" before a negative delta.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta %q: must be a whole number", args[1])
			}
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			p, err := s.Shop().AdjustStock(cmd.Context(), args[0], delta)
			if err != nil {
				return err
			}
			return render(cmd, p, func(w output) {
				okLabel.Fprintf(w.w, "✓ %s stock is now %d\n", p.Name, p.Stock)
			})
		},
	}
}

func newProductsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a product that was never sold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			if err := s.Shop().DeleteProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			return render(cmd, map[string]any{"result": 1, "deleted": args[0]}, func(w output) {
				okLabel.Fprintf(w.w, "✓ Deleted product %s\n", args[0])
			})
		},
	}
}

// ApplyResult lists what an apply created or changed.
type ApplyResult struct {
	CategoriesCreated []string `json:"categories_created"`
	ProductsCreated   []string `json:"products_created"`
	ProductsUpdated   []string `json:"products_updated"`
}

func newProductsApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update categories and products from a YAML manifest",
		Long: `Create or update categories and products from a YAML manifest. A file may hold
several documents separated by "---". {{ .ENV.NAME }} placeholders are replaced from the
environment or a .env file.

Categories are created when no category has the same name. A product with an id that
already exists is updated; any other product is created.

Example manifest:
  kind: Category
  name: Macetas
  ---
  kind: Product
  sku: MAC-BARRO-01
  name: Maceta de barro
  price: 4990
  stock: 12
  category: Macetas
  image: images/maceta.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("filename")
			if file == "" {
				return errors.New("a manifest is required: use -f FILE")
			}
			m, err := LoadManifest(file)
			if err != nil {
				return err
			}
			s, err := activeSession(session.RouteInventory)
			if err != nil {
				return err
			}
			res, err := applyManifest(cmd.Context(), s.Shop(), m)
			if err != nil {
				return err
			}
			return render(cmd, res, func(w output) {
				for _, c := range res.CategoriesCreated {
					okLabel.Fprintf(w.w, "✓ category %s created\n", c)
				}
				for _, id := range res.ProductsCreated {
					okLabel.Fprintf(w.w, "✓ product %s created\n", id)
				}
				for _, id := range res.ProductsUpdated {
					okLabel.Fprintf(w.w, "✓ product %s updated\n", id)
				}
			})
		},
	}
	cmd.Flags().StringP("filename", "f", "", "Manifest file")
	return cmd
}

// applyManifest creates missing categories first, so products may refer to them by name.
func applyManifest(ctx context.Context, c *shop.Client, m *Manifest) (*ApplyResult, error) {
	res := &ApplyResult{CategoriesCreated: []string{}, ProductsCreated: []string{}, ProductsUpdated: []string{}}

	cats, err := c.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int, len(cats))
	for _, cat := range cats {
		byName[strings.ToLower(cat.Name)] = cat.ID
	}
	for _, mc := range m.Categories {
		key := strings.ToLower(strings.TrimSpace(mc.Name))
		if _, ok := byName[key]; ok {
			continue
		}
		cat, err := c.CreateCategory(ctx, mc.Name)
		if err != nil {
			return res, fmt.Errorf("category %s: %w", mc.Name, err)
		}
		byName[key] = cat.ID
		res.CategoriesCreated = append(res.CategoriesCreated, cat.Name)
	}

	for _, mp := range m.Products {
		categoryID := mp.CategoryID
		if mp.Category != "" {
			id, ok := byName[strings.ToLower(strings.TrimSpace(mp.Category))]
			if !ok {
				return res, fmt.Errorf("product %s: unknown category %q", mp.SKU, mp.Category)
			}
			categoryID = id
		}
		var img *shop.Image
		if mp.Image != "" {
			path := mp.Image
			if !filepath.IsAbs(path) {
				path = filepath.Join(m.Dir, path)
			}
			if img, err = shop.LoadImage(path); err != nil {
				return res, fmt.Errorf("product %s: %w", mp.SKU, err)
			}
		}

		if mp.ID != "" {
			_, err := c.GetProduct(ctx, mp.ID)
			switch {
			case err == nil:
				patch := shopapi.ProductPatch{
					SKU:        &mp.SKU,
					Name:       &mp.Name,
					Price:      &mp.Price,
					Stock:      &mp.Stock,
					CategoryID: &categoryID,
				}
				if _, err := c.UpdateProduct(ctx, mp.ID, patch, img); err != nil {
					return res, fmt.Errorf("product %s: %w", mp.ID, err)
				}
				res.ProductsUpdated = append(res.ProductsUpdated, mp.ID)
				log.Ctx(ctx).Debug().Str("id", mp.ID).Msg("product updated")
				continue
			case !isNotFound(err):
				return res, fmt.Errorf("product %s: %w", mp.ID, err)
			}
		}

		p, err := c.CreateProduct(ctx, shopapi.ProductInput{
			ID:         mp.ID,
			SKU:        mp.SKU,
			Name:       mp.Name,
			Price:      mp.Price,
			Stock:      mp.Stock,
			CategoryID: categoryID,
		}, img)
		if err != nil {
			return res, fmt.Errorf("product %s: %w", mp.SKU, err)
		}
		res.ProductsCreated = append(res.ProductsCreated, p.ID)
		log.Ctx(ctx).Debug().Str("id", p.ID).Msg("product created")
	}
	return res, nil
}
