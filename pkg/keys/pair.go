package keys

import (
	"fmt"
	"io"

	"vbtree/pkg/codec"
)

// Pair is a compound key ordered lexicographically by First, then Second.
type Pair[A, B any] struct {
	First  A
	Second B
}

func (p Pair[A, B]) String() string {
	return fmt.Sprintf("(%v, %v)", p.First, p.Second)
}

// PairDomain combines two domains into a compound-key domain.
func PairDomain[A, B any](a Domain[A], b Domain[B]) Domain[Pair[A, B]] {
	return Domain[Pair[A, B]]{
		Name: "pair(" + a.Name + "," + b.Name + ")",
		Compare: func(x, y Pair[A, B]) int {
			if c := a.Compare(x.First, y.First); c != 0 {
				return c
			}
			return b.Compare(x.Second, y.Second)
		},
		Converter: pairConverter[A, B]{a: a.Converter, b: b.Converter},
	}
}

type pairConverter[A, B any] struct {
	a codec.Converter[A]
	b codec.Converter[B]
}

func (c pairConverter[A, B]) Write(w io.Writer, v Pair[A, B]) error {
	if err := c.a.Write(w, v.First); err != nil {
		return err
	}
	return c.b.Write(w, v.Second)
}

func (c pairConverter[A, B]) Read(r io.Reader) (Pair[A, B], error) {
	first, err := c.a.Read(r)
	if err != nil {
		return Pair[A, B]{}, err
	}
	second, err := c.b.Read(r)
	if err != nil {
		return Pair[A, B]{}, err
	}
	return Pair[A, B]{First: first, Second: second}, nil
}

func (c pairConverter[A, B]) Size(v Pair[A, B]) int {
	return c.a.Size(v.First) + c.b.Size(v.Second)
}
