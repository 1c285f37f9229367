// Package main is the entry point for modforge.
package main

func main() {
	Execute()
}
