package main

import "github.com/backbone81/graph-txlog/cmd/txlog-cli/cmd"

func main() {
	cmd.Execute()
}
