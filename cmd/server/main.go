package main

import "github.com/ndtrung-ct/signal-reactor/cmd"

func main() {
	cmd.Execute()
}
