package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorLockNotObtained = errors.New("lock not obtained")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
