/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import "gmptracker/cmd"

func main() {
	cmd.Execute()
}
