package main

import (
	"github.com/h2323547425/weenix/internal/cli"
	"github.com/h2323547425/weenix/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
