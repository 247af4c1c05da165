// Command heapctl replays allocation traces against the boundary-tag
// allocator and inspects heap files it leaves behind.
package main

func main() {
	execute()
}
