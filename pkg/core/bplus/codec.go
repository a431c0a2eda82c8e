package bplus

import (
	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"

	"vbtree/pkg/codec"
	"vbtree/pkg/keys"
	"vbtree/pkg/storage/container"
)

// NodeCodec encodes nodes as BSON documents for persistent containers.
// Values and separator keys are embedded as binary fields written by the
// tree's converters.
type NodeCodec[K, V any] struct {
	l *layout[K, V]
}

// NewNodeCodec returns the codec for trees built with opts.
func NewNodeCodec[K, V any](opts Options[K, V]) NodeCodec[K, V] {
	return NodeCodec[K, V]{l: newLayout(opts)}
}

type nodeDoc struct {
	Level    int        `bson:"level"`
	Next     int64      `bson:"next,omitempty"`
	Values   [][]byte   `bson:"values,omitempty"`
	Children []childDoc `bson:"children,omitempty"`
}

type childDoc struct {
	Key        []byte `bson:"key,omitempty"`
	Indefinite bool   `bson:"indefinite,omitempty"`
	ID         int64  `bson:"id"`
}

func (c NodeCodec[K, V]) Marshal(n *Node[K, V]) ([]byte, error) {
	doc := nodeDoc{Level: n.Level, Next: int64(n.Next)}
	for _, v := range n.values {
		b, err := codec.Marshal(c.l.conv, v)
		if err != nil {
			return nil, errors.Wrap(err, "encode value")
		}
		doc.Values = append(doc.Values, b)
	}
	for _, e := range n.children {
		cd := childDoc{ID: int64(e.ID)}
		switch {
		case e.Separator.IsIndefinite():
			cd.Indefinite = true
		case e.Separator.IsDefinite():
			b, err := codec.Marshal(c.l.dom.Converter, e.Separator.Key())
			if err != nil {
				return nil, errors.Wrap(err, "encode separator")
			}
			cd.Key = b
		default:
			return nil, errors.AssertionFailedf("lowest separator stored in node")
		}
		doc.Children = append(doc.Children, cd)
	}
	return bson.Marshal(doc)
}

func (c NodeCodec[K, V]) Unmarshal(data []byte) (*Node[K, V], error) {
	var doc nodeDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode node")
	}
	n := newNode(c.l, doc.Level)
	n.Next = container.ID(doc.Next)
	for _, b := range doc.Values {
		v, err := codec.Unmarshal(c.l.conv, b)
		if err != nil {
			return nil, errors.Wrap(err, "decode value")
		}
		n.values = append(n.values, v)
	}
	for _, cd := range doc.Children {
		e := IndexEntry[K]{ID: container.ID(cd.ID), Separator: keys.Indefinite[K]()}
		if !cd.Indefinite {
			k, err := codec.Unmarshal(c.l.dom.Converter, cd.Key)
			if err != nil {
				return nil, errors.Wrap(err, "decode separator")
			}
			e.Separator = keys.NewSeparator(k)
		}
		n.children = append(n.children, e)
	}
	n.recompute()
	return n, nil
}
