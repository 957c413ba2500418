package main

import "github.com/kadlecj/facetrack/cmd"

func main() {
	cmd.Execute()
}
