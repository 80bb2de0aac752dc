/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/stylus/stylus/cmd"

func main() {
	cmd.Execute()
}
