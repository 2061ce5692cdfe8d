package main

import "github.com/set-night/interviewcoach/internal/cli"

func main() {
	cli.Execute()
}
