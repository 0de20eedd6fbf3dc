package main

import "pitaradio/cmd"

func main() {
	cmd.Execute()
}
