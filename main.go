package main

import "knowra/cmd"

func main() {
	cmd.Execute()
}
