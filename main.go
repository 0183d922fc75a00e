package main

import "github.com/frahmantamala/evaluation-sync/cmd"

func main() {
	cmd.Execute()
}
