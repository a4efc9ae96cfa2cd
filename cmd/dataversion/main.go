/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/dataversion/cmd/dataversion/cmd"
	"github.com/ssargent/dataversion/pkg/di"
)

func main() {
	container := di.NewContainer()
	cmd.Execute(container)
}
