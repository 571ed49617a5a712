package main

import "github.com/ciychodianda/rsocket-go/cmd/rsocketctl/cmd"

func main() {
	cmd.Execute()
}
