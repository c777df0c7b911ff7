package sim

import (
	"slices"

	"golang.org/x/exp/rand"
)

// ReservoirSampler 蓄水池采样，随机性来自给定的 Stream，结果可复现.
type ReservoirSampler[T any] struct {
	samples []T
	count   int
	k       int
	rng     *rand.Rand
}

// NewReservoirSampler 创建容量为 k 的采样器.
func NewReservoirSampler[T any](k int, stream Stream) *ReservoirSampler[T] {
	return &ReservoirSampler[T]{
		k:       max(k, 0),
		samples: make([]T, 0, max(k, 0)),
		rng:     stream.Rand(),
	}
}

// Observe 处理一个新到达的元素.
func (s *ReservoirSampler[T]) Observe(item T) {
	s.count++

	if len(s.samples) < s.k {
		s.samples = append(s.samples, item)
		return
	}
	if j := s.rng.Intn(s.count); j < s.k {
		s.samples[j] = item
	}
}

// Samples 返回当前样本的副本.
func (s *ReservoirSampler[T]) Samples() []T {
	return slices.Clone(s.samples)
}

// Count 已观察的元素个数.
func (s *ReservoirSampler[T]) Count() int {
	return s.count
}

// SamplePaths 从集合中确定性地选出至多 k 条路径的下标（升序），用于绘图.
func SamplePaths(ens *PathEnsemble, k int, stream Stream) []int {
	if ens == nil || k <= 0 {
		return nil
	}
	if k >= ens.Paths() {
		idx := make([]int, ens.Paths())
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	rs := NewReservoirSampler[int](k, stream)
	for j := range ens.Paths() {
		rs.Observe(j)
	}
	idx := rs.Samples()
	slices.Sort(idx)
	return idx
}
