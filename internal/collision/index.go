package collision

import (
	"sync"

	"github.com/dhconnelly/rtreego"

	"globe-overlay/internal/labels"
)

const pickTolerance = 0.5

// indexedLabel keeps the record the label carried when the index was built,
// so hit tests never read live scene entities
type indexedLabel struct {
	record *labels.Record
	box    Rect
}

// Bounds implements rtreego.Spatial
func (e *indexedLabel) Bounds() rtreego.Rect {
	point := rtreego.Point{e.box.MinX, e.box.MinY}
	lengths := []float64{e.box.MaxX - e.box.MinX, e.box.MaxY - e.box.MinY}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// Index answers screen hit tests against the visible labels of the last pass
type Index struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	size int
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{tree: rtreego.NewTree(2, 25, 50)}
}

// Rebuild replaces the index contents with the shown labels of res.
// Callers must hold whatever lock guards the labels of res.
func (x *Index) Rebuild(res Result) {
	tree := rtreego.NewTree(2, 25, 50)
	size := 0
	for i, l := range res.Labels {
		if !res.Show[i] || res.Boxes[i].Empty() {
			continue
		}
		tree.Insert(&indexedLabel{record: l.Record, box: res.Boxes[i]})
		size++
	}

	x.mu.Lock()
	x.tree, x.size = tree, size
	x.mu.Unlock()
}

// Reset empties the index
func (x *Index) Reset() {
	x.mu.Lock()
	x.tree, x.size = rtreego.NewTree(2, 25, 50), 0
	x.mu.Unlock()
}

// Len returns the number of indexed labels
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.size
}

// Pick returns the records of visible labels whose box contains the window point
func (x *Index) Pick(px, py float64) []*labels.Record {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.size == 0 {
		return nil
	}
	hits := x.tree.SearchIntersect(rtreego.Point{px, py}.ToRect(pickTolerance))

	out := make([]*labels.Record, 0, len(hits))
	for _, hit := range hits {
		e := hit.(*indexedLabel)
		if e.box.Contains(px, py) {
			out = append(out, e.record)
		}
	}
	return out
}
