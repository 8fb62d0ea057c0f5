package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvalis/taskgraph/taskflow"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Run a diamond-shaped static task graph and a critical section demo",
	RunE:  runGraphDemo,
}

func runGraphDemo(cmd *cobra.Command, args []string) error {
	executor := taskflow.NewExecutor(numWorkers())
	defer executor.Close()

	wf := taskflow.NewWorkflow("diamond")
	g := wf.Graph()

	extract := g.Emplace("extract", func() {
		fmt.Println("extract: pulling source data")
	})
	transformA := g.Emplace("transform-a", func() {
		time.Sleep(2 * time.Millisecond)
		fmt.Println("transform-a: done")
	})
	transformB := g.Emplace("transform-b", func() {
		time.Sleep(time.Millisecond)
		fmt.Println("transform-b: done")
	})
	load := g.Emplace("load", func() {
		fmt.Println("load: writing result")
	})
	extract.Precede(transformA, transformB)
	load.Succeed(transformA, transformB)

	sem := taskflow.NewCriticalSection(1)
	guarded1 := g.Emplace("guarded-writer-1", func() { fmt.Println("guarded-writer-1 holds the section") })
	guarded2 := g.Emplace("guarded-writer-2", func() { fmt.Println("guarded-writer-2 holds the section") })
	sem.Add(guarded1, guarded2)
	load.Precede(guarded1, guarded2)

	executor.Run(wf).Wait()

	if viper.GetBool("profile") {
		if err := executor.Profile(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
