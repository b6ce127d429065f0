package store

import "github.com/plantitas/plantitas/pkg/shopapi"

type seedProduct struct {
	id, sku, name, category string
	price                   int64
	stock                   int
}

var seedCategories = []string{"Ramos", "Plantas", "Flores sueltas", "Accesorios"}

var seedProducts = []seedProduct{
	{"P001", "RAMO-PRIM", "Ramo Primavera", "Ramos", 13990, 7},
	{"P002", "RAMO-DELX", "Ramo Deluxe", "Ramos", 24990, 3},
	{"P003", "PL-CACT-01", "Cactus mini", "Plantas", 5990, 25},
	{"P004", "PL-SUC-02", "Suculenta Jade", "Plantas", 6990, 18},
	{"P005", "FL-ROSA-UNI", "Rosa roja (unidad)", "Flores sueltas", 1490, 12},
	{"P006", "FL-LIR-UNI", "Lirio blanco (unidad)", "Flores sueltas", 1490, 6},
	{"P007", "ACC-JARR", "Jarrón vidrio", "Accesorios", 7990, 9},
	{"P008", "ACC-TARJ", "Tarjeta dedicatoria", "Accesorios", 990, 100},
}

// Seed loads the demo catalogue into an empty store.
func (s *Store) Seed() error {
	ids := map[string]int{}
	for _, name := range seedCategories {
		c, err := s.CreateCategory(name)
		if err != nil {
			return err
		}
		ids[name] = c.ID
	}
	for _, p := range seedProducts {
		_, err := s.CreateProduct(shopapi.ProductInput{
			ID:         p.id,
			SKU:        p.sku,
			Name:       p.name,
			Price:      p.price,
			Stock:      p.stock,
			CategoryID: ids[p.category],
		}, "")
		if err != nil {
			return err
		}
	}
	return nil
}
