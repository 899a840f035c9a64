package dummydb

import "time"

// compareTimes orders zero times after every other time, like NULLs in an ascending SQL sort.
func compareTimes(t1, t2 time.Time) int {
	switch {
	case t1.Equal(t2):
		return 0
	case t1.IsZero():
		return 1
	case t2.IsZero():
		return -1
	case t1.Before(t2):
		return -1
	}
	return 1
}

func compareBools(b1, b2 bool) int {
	switch {
	case b1 == b2:
		return 0
	case !b1:
		return -1
	}
	return 1
}
