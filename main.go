// Package main is the entry point for the pbpmetrics CLI tool, which
// reconstructs basketball box-score state from play-by-play event streams.
package main

import "github.com/pable/go-pbp-metrics/cmd"

func main() {
	cmd.Execute()
}
