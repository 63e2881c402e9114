package main

import "github.com/charliek/sidecarhost/internal/cli"

func main() {
	cli.Execute()
}
