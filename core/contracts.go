package core

import (
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Clock abstracts time acquisition so dispatch timestamps and storage
// metadata are deterministic under test.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// Zeroize overwrites a sensitive buffer in place. Callers still own the
// slice; only its contents are cleared.
func Zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
