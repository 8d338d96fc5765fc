package clock

import "time"

// Clock abstrae la lectura del tiempo actual para poder fijarla en tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System devuelve el reloj de pared en UTC.
func System() Clock {
	return systemClock{}
}
