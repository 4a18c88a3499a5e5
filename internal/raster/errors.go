package raster

import "fmt"

// DecodeError reports that an input buffer could not be turned into a
// raster. It is fatal for that image: no partial raster is produced.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
