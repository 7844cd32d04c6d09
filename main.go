package main

import "rbuild/internal/rbuild"

func main() {
	rbuild.Main()
}
