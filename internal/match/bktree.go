package match

import (
	"math"

	"github.com/agnivade/levenshtein"
)

// nameTree is a BK-tree over normalized names under edit distance. It
// returns every indexed name within a distance of a query.
type nameTree struct {
	root     *bkNode
	distance func(a, b string) int
}

type bkNode struct {
	name     string
	index    int
	children map[int]*bkNode // distance -> child node
}

func newNameTree() *nameTree {
	return &nameTree{distance: levenshtein.ComputeDistance}
}

// Insert adds name with its associated index. Equal names are kept as
// separate nodes at distance 0.
func (t *nameTree) Insert(name string, index int) {
	node := &bkNode{
		name:     name,
		index:    index,
		children: make(map[int]*bkNode),
	}

	if t.root == nil {
		t.root = node
		return
	}

	current := t.root
	for {
		dist := t.distance(name, current.name)
		if child, exists := current.children[dist]; exists {
			current = child
		} else {
			current.children[dist] = node
			return
		}
	}
}

// Within returns the indices of all names at most radius edits from name,
// in no particular order.
func (t *nameTree) Within(name string, radius int) []int {
	if t.root == nil {
		return nil
	}

	var results []int
	t.search(t.root, name, radius, &results)
	return results
}

func (t *nameTree) search(node *bkNode, name string, radius int, results *[]int) {
	dist := t.distance(name, node.name)
	if dist <= radius {
		*results = append(*results, node.index)
	}

	// Triangle inequality: only children in [dist-radius, dist+radius] can match.
	lo, hi := max(dist-radius, 0), dist+radius
	for childDist, child := range node.children {
		if childDist >= lo && childDist <= hi {
			t.search(child, name, radius, results)
		}
	}
}

// Size returns the number of indexed names.
func (t *nameTree) Size() int {
	if t.root == nil {
		return 0
	}
	return countNodes(t.root)
}

func countNodes(node *bkNode) int {
	count := 1
	for _, child := range node.children {
		count += countNodes(child)
	}
	return count
}

// searchRadius bounds the edit distance between a name of length runes and
// any name scoring at least threshold against it. A longer partner can be at
// most length/threshold runes, so the distance is at most
// (1-threshold)*length/threshold. It returns -1 when no bound exists.
func searchRadius(length int, threshold float64) int {
	if threshold <= 0 {
		return -1
	}
	return int(math.Floor((1-threshold)*float64(length)/threshold + 1e-9))
}
