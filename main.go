package main

import "github.com/camden-git/photogallery/cmd"

func main() {
	cmd.Execute()
}
