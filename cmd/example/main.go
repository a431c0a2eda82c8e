package main

import (
	"cmp"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"vbtree/pkg/common"
	"vbtree/pkg/config"
	"vbtree/pkg/core/bplus"
	"vbtree/pkg/cursor"
	"vbtree/pkg/keys"
	"vbtree/pkg/store"
)

func main() {
	cfg := config.Default()
	cfg.Tree.MinCapacity, cfg.Tree.MaxCapacity = 256, 1024

	s, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open tree: %v", err)
	}
	defer s.Close()

	fmt.Println("Inserting a 16x16x4 grid of points under Z-order keys...")
	start := time.Now()
	for x := uint32(0); x < 16; x++ {
		for y := uint32(0); y < 16; y++ {
			for z := uint32(0); z < 4; z++ {
				code, err := keys.Encode3D(x, y, z)
				if err != nil {
					log.Fatalf("Encode failed: %v", err)
				}
				rec := common.Record{Key: common.KeyType(code), Value: []byte(fmt.Sprintf("p(%d,%d,%d)", x, y, z))}
				if err := s.Tree.Insert(rec); err != nil {
					log.Fatalf("Insert failed: %v", err)
				}
			}
		}
	}
	fmt.Printf("Inserted %d points in %v, height %d\n", s.Tree.Len(), time.Since(start), s.Tree.Height())

	box := keys.Box{MinX: 2, MinY: 3, MinZ: 1, MaxX: 5, MaxY: 4, MaxZ: 2}
	inBox, err := bplus.QueryBox(s.Tree, box)
	if err != nil {
		log.Fatalf("QueryBox failed: %v", err)
	}
	recs, err := cursor.Collect(inBox)
	if err != nil {
		log.Fatalf("QueryBox failed: %v", err)
	}
	fmt.Printf("Box %+v holds %d points:\n", box, len(recs))
	for _, rec := range recs {
		fmt.Printf("  %s\n", rec.Value)
	}

	// Keys shared by two overlapping range queries.
	d := s.Tree.Domain()
	a, _ := d.Range(0, 600)
	b, _ := d.Range(400, 1000)
	both := cursor.SortBasedIntersection[common.Record](s.Tree.Query(a), s.Tree.Query(b),
		func(x, y common.Record) int { return cmp.Compare(x.Key, y.Key) }, nil)
	n, err := cursor.Count[common.Record](both)
	if err != nil {
		log.Fatalf("Intersection failed: %v", err)
	}
	fmt.Printf("Keys in [0, 600) and [400, 1000): %d\n", n)
}
