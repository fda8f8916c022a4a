package eventmodels

import "fmt"

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Validate() error {
	if d != DirectionLong && d != DirectionShort {
		return fmt.Errorf("Direction: Validate: invalid direction: %s", d)
	}

	return nil
}
