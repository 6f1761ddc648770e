package entity

// CheckVersion validates an incoming version against the current one.
// Moving from unset (0) to anything is allowed, as is staying equal or moving
// forward. Going backwards is a contract violation and is never tolerated.
func CheckVersion(current, incoming int64) error {
	if current != 0 && incoming < current {
		return ErrVersionRegression(current, incoming)
	}
	return nil
}
