package main

import "github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/cmd"

func main() {
	cmd.Execute()
}
