// Package main provides the basicpitch command line tool.
package main

import "github.com/born-ml/basicpitch/internal/cmd"

func main() {
	cmd.Execute()
}
