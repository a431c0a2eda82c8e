// Package store assembles a record tree from configuration. The command line
// tools use it to get a tree over the configured container stack.
package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"vbtree/pkg/codec"
	"vbtree/pkg/common"
	"vbtree/pkg/config"
	"vbtree/pkg/core/bplus"
	"vbtree/pkg/keys"
	"vbtree/pkg/monitor"
	"vbtree/pkg/storage/container"
)

type (
	Tree = bplus.Tree[int64, common.Record]
	Node = bplus.Node[int64, common.Record]
)

// Store owns a record tree and the containers below it.
type Store struct {
	Tree *Tree

	cfg   config.StorageConfig
	opts  bplus.Options[int64, common.Record]
	pages *container.SQLite[*Node]
	c     container.Container[*Node]
	stats *monitor.ContainerStats
}

// Options returns the tree options for records under cfg.
func Options(cfg config.TreeConfig) bplus.Options[int64, common.Record] {
	return bplus.Options[int64, common.Record]{
		Domain:       keys.Int64Domain(),
		KeyOf:        common.RecordKey,
		Converter:    codec.Record{},
		Equal:        func(a, b common.Record) bool { return a.Key == b.Key && bytes.Equal(a.Value, b.Value) },
		MinCapacity:  cfg.MinCapacity,
		MaxCapacity:  cfg.MaxCapacity,
		NodeOverhead: cfg.NodeOverhead,
		Unique:       cfg.Unique,
		DebugChecks:  cfg.DebugChecks,
		Logger:       log.WithField("component", "tree"),
	}
}

// Open builds the container stack named by cfg.Storage and opens the tree
// stored in it, creating an empty one when none exists.
func Open(cfg *config.Config) (*Store, error) {
	s := &Store{cfg: cfg.Storage, opts: Options(cfg.Tree)}
	tree, err := bplus.New(s.opts)
	if err != nil {
		return nil, err
	}
	s.Tree = tree

	switch strings.ToLower(cfg.Storage.Backend) {
	case "", "memory":
		s.wrapMemory()
	case "sqlite":
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.Wrapf(err, "create %s", dir)
			}
		}
		pages, err := container.OpenSQLite[*Node](cfg.Storage.Path, cfg.Storage.Namespace, bplus.NewNodeCodec(s.opts))
		if err != nil {
			return nil, err
		}
		s.pages = pages
		s.wrapPages()
	default:
		return nil, errors.Newf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if err := tree.Open(s.c); err != nil {
		s.c.Close()
		return nil, err
	}
	log.WithFields(log.Fields{
		"backend": cfg.Storage.Backend,
		"values":  tree.Len(),
		"height":  tree.Height(),
	}).Info("[Store] tree opened")
	return s, nil
}

func (s *Store) wrapMemory() {
	counting := container.NewCounting[*Node](container.NewMemory[*Node](32))
	s.c, s.stats = counting, counting.Stats()
}

func (s *Store) wrapPages() {
	buf := container.NewBuffer[*Node](s.pages, s.cfg.BufferSlots, policy(s.cfg.EvictionPolicy))
	s.c, s.stats = buf, buf.Stats()
}

// Reset discards every record and starts over with an empty tree. Buffered
// pages are dropped without being written back.
func (s *Store) Reset() error {
	tree, err := bplus.New(s.opts)
	if err != nil {
		return err
	}
	if s.pages != nil {
		if err := s.pages.Truncate(); err != nil {
			return err
		}
		s.wrapPages()
	} else {
		if err := s.c.Close(); err != nil {
			return err
		}
		s.wrapMemory()
	}
	if err := tree.Initialize(s.c); err != nil {
		return err
	}
	s.Tree = tree
	log.Info("[Store] tree reset")
	return nil
}

func policy(name string) container.Policy {
	if strings.EqualFold(name, "fifo") {
		return container.NewFIFO()
	}
	return container.NewLRU()
}

// ContainerStats returns the operation counters of the top container.
func (s *Store) ContainerStats() *monitor.ContainerStats { return s.stats }

// Close syncs the tree and closes the containers.
func (s *Store) Close() error {
	serr := s.Tree.Sync()
	cerr := s.c.Close()
	return errors.CombineErrors(serr, cerr)
}
