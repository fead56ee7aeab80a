package main

import "imgdupes/cmd"

func main() {
	cmd.Execute()
}
