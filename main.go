// Package main is entrypoint for the application
package main

import (
	"telecare/cmd"
)

func main() {
	cmd.Run()
}
