package world

import "context"

// Pathfinder выполняет поиск кратчайшего пути по графу регионов в ширину.
//
// No pack example ships a graph/BFS library sized for a few hundred nodes;
// a plain adjacency-list BFS over stdlib containers is the straightforward
// idiomatic choice here rather than a dependency for something this small.
type Pathfinder struct {
	store *Store
}

// NewPathfinder создаёт пасфайндер поверх хранилища мира.
func NewPathfinder(store *Store) *Pathfinder {
	return &Pathfinder{store: store}
}

// TraversalPolicy controls which regions an edge may pass through.
type TraversalPolicy struct {
	// Team is the traversing team; TeamNone means an unrestricted world-view
	// query that can pass through any region.
	Team Team
	// TraverseNeutrals allows passage through unowned regions when true.
	TraverseNeutrals bool
}

// Enterable reports whether dest can be entered under the given policy.
func (p TraversalPolicy) Enterable(dest *Region, hasActiveBattle bool) bool {
	if p.Team == TeamNone {
		return true
	}
	if dest.Owner == p.Team {
		return true
	}
	if hasActiveBattle {
		return true
	}
	if p.TraverseNeutrals && dest.Owner == TeamNone {
		return true
	}
	return false
}

// FindPath returns the shortest sequence of region ids from source to dest,
// inclusive of both endpoints, or (nil, false) if no path exists under the
// given policy.
func (p *Pathfinder) FindPath(ctx context.Context, q queryer, sourceID, destID int64, policy TraversalPolicy) ([]int64, bool, error) {
	if sourceID == destID {
		return []int64{sourceID}, true, nil
	}

	regions, err := p.store.ListRegions(ctx, q)
	if err != nil {
		return nil, false, err
	}
	byID := make(map[int64]*Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}

	battles, err := p.store.ListBattles(ctx, q)
	if err != nil {
		return nil, false, err
	}
	activeBattle := make(map[int64]bool, len(battles))
	for _, b := range battles {
		activeBattle[b.RegionID] = true
	}

	visited := map[int64]bool{sourceID: true}
	parent := map[int64]int64{}
	queue := []int64{sourceID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		curRegion, ok := byID[cur]
		if !ok {
			continue
		}
		for _, nextID := range curRegion.Borders {
			if visited[nextID] {
				continue
			}
			next, ok := byID[nextID]
			if !ok {
				continue
			}
			if !policy.Enterable(next, activeBattle[nextID]) {
				continue
			}
			visited[nextID] = true
			parent[nextID] = cur
			if nextID == destID {
				queue = nil
				break
			}
			queue = append(queue, nextID)
		}
	}

	if !visited[destID] {
		return nil, false, nil
	}

	var path []int64
	for at := destID; ; {
		path = append([]int64{at}, path...)
		if at == sourceID {
			break
		}
		at = parent[at]
	}
	return path, true, nil
}
