package main

import (
	"drift-health-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
