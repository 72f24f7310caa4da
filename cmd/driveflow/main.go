package main

import "github.com/driveflow/driveflow/cmd/driveflow/cmd"

func main() {
	cmd.Execute()
}
