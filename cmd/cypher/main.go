/*
Copyright © 2024 Oleksandr Bratushka
*/
package main

func main() {
	Execute()
}
