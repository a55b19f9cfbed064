// Command replshim runs code in persistent interpreter processes.
package main

func main() {
	Execute()
}
