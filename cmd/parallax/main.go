package main

import (
	"github.com/parallax-vision/parallax/cmd/parallax/cmd"
)

func main() {
	cmd.Execute()
}
