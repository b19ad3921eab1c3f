package utils

import (
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestUnionFind(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		u := NewUnionFind()
		test.That(t, u.Size(), test.ShouldEqual, 0)
		test.That(t, len(u.Unions()), test.ShouldEqual, 0)
	})

	t.Run("single edge", func(t *testing.T) {
		u := NewUnionFind()
		u.AddEdge(0, 1)
		test.That(t, u.Find(0), test.ShouldEqual, u.Find(1))
		test.That(t, u.Unions(), test.ShouldResemble, [][]int{{0, 1}})
	})

	t.Run("implicit singletons", func(t *testing.T) {
		u := NewUnionFind()
		u.AddEdge(2, 4)
		// elements 0, 1 and 3 were created implicitly as singletons
		test.That(t, u.Unions(), test.ShouldResemble, [][]int{{0}, {1}, {2, 4}, {3}})
	})

	t.Run("transitive merge", func(t *testing.T) {
		u := NewUnionFind()
		u.AddEdge(0, 1)
		u.AddEdge(2, 3)
		u.AddEdge(1, 3)
		test.That(t, u.Find(0), test.ShouldEqual, u.Find(3))
		test.That(t, u.Unions(), test.ShouldResemble, [][]int{{0, 1, 2, 3}})
	})

	t.Run("partition is independent of edge order", func(t *testing.T) {
		edges := [][2]int{{0, 1}, {2, 3}, {4, 5}, {1, 2}, {6, 7}, {5, 6}}
		want := [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}}

		r := rand.New(rand.NewSource(11))
		for trial := 0; trial < 20; trial++ {
			shuffled := make([][2]int, len(edges))
			copy(shuffled, edges)
			r.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			u := NewUnionFind()
			for _, e := range shuffled {
				u.AddEdge(e[0], e[1])
			}
			test.That(t, u.Unions(), test.ShouldResemble, want)
		}
	})

	t.Run("redundant edges change nothing", func(t *testing.T) {
		u := NewUnionFind()
		u.AddEdge(0, 1)
		u.AddEdge(0, 1)
		u.AddEdge(1, 0)
		test.That(t, u.Unions(), test.ShouldResemble, [][]int{{0, 1}})
	})
}
