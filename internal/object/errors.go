package object

import "fmt"

func errSegmentRead(name string, err error) error {
	return fmt.Errorf("read %s segment: %w", name, err)
}

func errOverlap(name string, addr uint64) error {
	return fmt.Errorf("%s segment overlaps an already-populated address 0x%x", name, addr)
}
