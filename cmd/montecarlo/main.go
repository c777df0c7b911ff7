// Command montecarlo 估计 GBM 参数、运行双测度蒙特卡洛模拟并输出风险与定价报告，
// 也可以作为 HTTP/gRPC 服务运行。
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
