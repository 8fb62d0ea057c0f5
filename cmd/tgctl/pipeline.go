package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/corvalis/taskgraph/taskflow"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run a 3-line, 3-stage pipeline (SERIAL/PARALLEL/SERIAL) over 20 tokens",
	RunE:  runPipelineDemo,
}

func runPipelineDemo(cmd *cobra.Command, args []string) error {
	const lines = 3
	const tokenLimit = 20

	var mu sync.Mutex
	var order []uint64

	source := taskflow.NewPipe(taskflow.SERIAL, func(pf *taskflow.Pipeflow) {
		if pf.Token() >= tokenLimit {
			pf.Stop()
			return
		}
		fmt.Printf("line %d generated token %d\n", pf.Line(), pf.Token())
	})
	transform := taskflow.NewPipe(taskflow.PARALLEL, func(pf *taskflow.Pipeflow) {
		fmt.Printf("line %d transforming token %d\n", pf.Line(), pf.Token())
	})
	sink := taskflow.NewPipe(taskflow.SERIAL, func(pf *taskflow.Pipeflow) {
		mu.Lock()
		order = append(order, pf.Token())
		mu.Unlock()
	})

	p := taskflow.NewPipeline(lines, source, transform, sink)
	p.Run()

	fmt.Printf("generated %d tokens across %d lines\n", p.NumTokens(), p.NumLines())
	fmt.Printf("sink observed strict order: %v\n", order)
	return nil
}
