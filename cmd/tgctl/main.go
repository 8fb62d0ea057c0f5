// Command tgctl is a small demo CLI over the taskflow scheduler: it
// builds a handful of representative graphs and pipelines. The graph
// demos run against a real Executor and print a flame-graph profile of
// what ran; the pipeline demo runs on the pipeline's own line
// goroutines and prints no profile.
package main

func main() {
	Execute()
}
