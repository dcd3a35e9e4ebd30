package main

import "github.com/hitoshi/rydora/internal/app"

func main() {
	app.Main()
}
