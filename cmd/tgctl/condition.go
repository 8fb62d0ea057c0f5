package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvalis/taskgraph/condexpr"
	"github.com/corvalis/taskgraph/taskflow"
)

var conditionCmd = &cobra.Command{
	Use:   "condition",
	Short: "Run a Condition task whose branch is chosen by an expr-lang expression",
	RunE:  runConditionDemo,
}

func runConditionDemo(cmd *cobra.Command, args []string) error {
	executor := taskflow.NewExecutor(numWorkers())
	defer executor.Close()

	data := map[string]any{"score": 82}
	eval := condexpr.NewEvaluator(0)

	wf := taskflow.NewWorkflow("gate")
	g := wf.Graph()

	check := g.Emplace("check-score", eval.Condition("score >= 90 ? 0 : score >= 60 ? 1 : 2", data))
	pass := g.Emplace("grade-a", func() { fmt.Println("grade-a: score >= 90") })
	ok := g.Emplace("grade-b", func() { fmt.Println("grade-b: 60 <= score < 90") })
	fail := g.Emplace("grade-f", func() { fmt.Println("grade-f: score < 60") })
	check.Precede(pass, ok, fail)

	executor.Run(wf).Wait()

	if viper.GetBool("profile") {
		if err := executor.Profile(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
