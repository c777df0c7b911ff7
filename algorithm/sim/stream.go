package sim

import (
	"golang.org/x/exp/rand"
)

const (
	golden = 0x9e3779b97f4a7c15
	// oddPathStream 是奇数路径数 + 对偶变量时，最后一条独立路径使用的保留子流编号。
	oddPathStream = 1 << 63
)

// Stream 是一个可拆分的确定性随机流。
// 相同 Stream 总是产生相同的抽样序列；Split 派生互不重叠的子流，
// 供并行 worker 和两种测度的模拟各自使用，避免共享有状态的生成器。
type Stream struct {
	seed uint64
	key  uint64
}

// NewStream 以种子创建根随机流。
func NewStream(seed uint64) Stream {
	return Stream{seed: seed, key: splitmix64(seed)}
}

// Split 派生第 i 个子流。
func (s Stream) Split(i uint64) Stream {
	return Stream{seed: s.seed, key: splitmix64(s.key ^ splitmix64(i+golden))}
}

// Seed 返回根种子。
func (s Stream) Seed() uint64 {
	return s.seed
}

// Key 返回派生后的状态键，可用于日志与缓存键。
func (s Stream) Key() uint64 {
	return s.key
}

// Rand 返回一个新的 PCG 生成器，调用方独占使用。
func (s Stream) Rand() *rand.Rand {
	return rand.New(rand.NewSource(s.key))
}

// splitmix64 混合函数，用于把 (种子, 编号) 映射到分布均匀的 64 位状态。
func splitmix64(x uint64) uint64 {
	x += golden
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
