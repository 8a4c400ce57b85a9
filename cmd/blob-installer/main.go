package main

import "github.com/oshokin/blob-installer/cmd/blob-installer/cmd"

func main() {
	cmd.Execute()
}
