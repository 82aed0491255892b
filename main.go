package main

import "github.com/clearway/settle/cmd"

func main() {
	cmd.Execute()
}
