package main

import "github.com/pdfseal/pdfseal/cli"

func main() {
	cli.Run()
}
