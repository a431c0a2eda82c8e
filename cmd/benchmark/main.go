package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"vbtree/pkg/common"
	"vbtree/pkg/config"
	"vbtree/pkg/cursor"
	"vbtree/pkg/monitor"
	"vbtree/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to vbtree.yaml")
	backend := flag.String("backend", "", "override storage backend (memory or sqlite)")
	n := flag.Int("n", 50000, "Number of records")
	nQuery := flag.Int("q", 1000, "Number of range queries")
	span := flag.Int64("span", 100, "Key span of each range query")
	maxValue := flag.Int("value", 64, "Maximum payload size in bytes")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if lvl, err := log.ParseLevel(cfg.System.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	s, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open tree: %v", err)
	}
	defer s.Close()

	rng := rand.New(rand.NewSource(*seed))
	keySpace := int64(*n) * 4
	recs := make([]common.Record, *n)
	for i := range recs {
		size := 1 + rng.Intn(*maxValue)
		recs[i] = common.Record{
			Key:   common.KeyType(rng.Int63n(keySpace)),
			Value: bytes.Repeat([]byte{byte('a' + i%26)}, size),
		}
	}

	fmt.Printf("vbtree Benchmark (N=%d, backend=%s, capacity [%d, %d])\n",
		*n, cfg.Storage.Backend, cfg.Tree.MinCapacity, cfg.Tree.MaxCapacity)
	fmt.Println("---------------------------------------------------")

	fmt.Println(">> Insert...")
	d := timed(func() {
		for _, rec := range recs {
			if err := s.Tree.Insert(rec); err != nil {
				log.Fatalf("Insert failed: %v", err)
			}
		}
	})
	report(d, *n)
	fmt.Printf("   height: %d\n\n", s.Tree.Height())

	fmt.Println(">> Range queries...")
	var counters monitor.QueryCounters
	rows := 0
	d = timed(func() {
		for i := 0; i < *nQuery; i++ {
			lo := rng.Int63n(keySpace)
			r, _ := s.Tree.Domain().Range(lo, lo+*span)
			c, err := cursor.Count[common.Record](s.Tree.QueryCounted(r, &counters))
			if err != nil {
				log.Fatalf("Query failed: %v", err)
			}
			rows += c
		}
	})
	report(d, *nQuery)
	if *nQuery > 0 {
		fmt.Printf("   rows/query: %.1f | index nodes/query: %.1f | leaves/query: %.1f\n\n",
			float64(rows)/float64(*nQuery),
			float64(counters.IndexNodesVisited)/float64(*nQuery),
			float64(counters.LeavesTouched)/float64(*nQuery))
	}

	fmt.Println(">> Remove half...")
	half := recs[:len(recs)/2]
	d = timed(func() {
		for _, rec := range half {
			if err := s.Tree.Remove(rec); err != nil {
				log.Fatalf("Remove failed: %v", err)
			}
		}
	})
	report(d, len(half))

	if err := s.Tree.Check(); err != nil {
		log.Fatalf("Tree invariants violated: %v", err)
	}

	st := s.Tree.Stats()
	fmt.Println("---------------------------------------------------")
	fmt.Printf("values: %d | height: %d | splits: %d | merges: %d | redistributions: %d | postponed: %d\n",
		st.Values, st.Height, st.Splits, st.Merges, st.Redistributions, st.Postponed)
	fmt.Printf("container: %v\n", s.ContainerStats().Snapshot())
}

func timed(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

func report(d time.Duration, ops int) {
	fmt.Printf("   Time: %v | OPS: %.0f\n", d, float64(ops)/d.Seconds())
}
