/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/leantrack/tripd/cmd"

func main() {
	cmd.Execute()
}
