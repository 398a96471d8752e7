package repository

import (
	"fmt"

	"github.com/automax/routing/internal/models"
	"gorm.io/gorm"
)

// rebuildPlates recomputes level and plate of every live group from the
// parent links. It must run inside the transaction of the structural change.
func rebuildPlates(tx *gorm.DB) (int, error) {
	var groups []models.Group
	if err := tx.Order("sort_order, id").Find(&groups).Error; err != nil {
		return 0, err
	}

	index := make(map[uint]int, len(groups))
	for i, g := range groups {
		index[g.ID] = i
	}

	type node struct {
		idx   int
		plate string
		level int
	}
	children := make(map[uint][]int, len(groups))
	queue := make([]node, 0, len(groups))
	for i, g := range groups {
		if g.ParentID == nil {
			queue = append(queue, node{idx: i, plate: models.BuildPlate("", g.ID), level: 0})
			continue
		}
		if _, ok := index[*g.ParentID]; !ok {
			return 0, fmt.Errorf("group %d hangs from missing parent %d", g.ID, *g.ParentID)
		}
		children[*g.ParentID] = append(children[*g.ParentID], i)
	}

	visited, updated := 0, 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++

		g := &groups[n.idx]
		if g.Plate != n.plate || g.Level != n.level {
			err := tx.Model(&models.Group{}).Where("id = ?", g.ID).
				Updates(map[string]interface{}{"plate": n.plate, "level": n.level}).Error
			if err != nil {
				return updated, err
			}
			g.Plate, g.Level = n.plate, n.level
			updated++
		}
		for _, c := range children[g.ID] {
			queue = append(queue, node{idx: c, plate: models.BuildPlate(n.plate, groups[c].ID), level: n.level + 1})
		}
	}

	if visited != len(groups) {
		return updated, fmt.Errorf("group tree has %d groups unreachable from a root", len(groups)-visited)
	}
	return updated, nil
}
