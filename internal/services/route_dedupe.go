package services

import (
	"loop-route-service/internal/domain"
)

// DedupeRoutes keeps, in input order, each route whose cell-set Jaccard
// similarity to every route already kept is below threshold.
//
// This is a greedy, order-dependent pass rather than an optimal clustering:
// callers sort first so the better of two near-duplicates survives. Running it
// again on its own output returns the same routes.
func DedupeRoutes(routes []domain.Route, cellMeters, threshold float64) []domain.Route {
	if len(routes) == 0 {
		return nil
	}

	refLat := 0.0
	for _, r := range routes {
		if len(r.Path) > 0 {
			refLat = r.Path[0].Lat()
			break
		}
	}
	grid := newCellGrid(cellMeters, refLat)

	kept := make([]domain.Route, 0, len(routes))
	keptCells := make([]map[gridCell]struct{}, 0, len(routes))

	for _, r := range routes {
		cells := grid.cellSet(r.Path)

		unique := true
		for _, other := range keptCells {
			if jaccard(cells, other) >= threshold {
				unique = false
				break
			}
		}
		if unique {
			kept = append(kept, r)
			keptCells = append(keptCells, cells)
		}
	}

	return kept
}

// RouteSimilarity returns the Jaccard similarity of two routes' cell footprints.
func RouteSimilarity(a, b domain.Route, cellMeters float64) float64 {
	refLat := 0.0
	if len(a.Path) > 0 {
		refLat = a.Path[0].Lat()
	}
	grid := newCellGrid(cellMeters, refLat)
	return jaccard(grid.cellSet(a.Path), grid.cellSet(b.Path))
}

func jaccard(a, b map[gridCell]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
