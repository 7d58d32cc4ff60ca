package main

import "github.com/aweris/castor/cmd/castor/cmd"

func main() {
	cmd.Execute()
}
