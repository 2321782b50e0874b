package main

import "torn-alert-watcher/internal/cli"

func main() {
	cli.Execute()
}
