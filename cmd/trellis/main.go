package main

import (
	"go.brendoncarroll.net/star"

	"hwtrellis.org/trellis/trcmd"
)

func main() {
	star.Main(trcmd.Root())
}
