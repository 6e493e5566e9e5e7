package main

import "github.com/vibast-solutions/ms-go-enrollments/cmd"

func main() {
	cmd.Execute()
}
