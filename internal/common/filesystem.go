package common

import (
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
)

func MkdirForFile(fileName string) error {
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return err
	}
	return nil
}

func OpenTempFile(fullPath string) (f *os.File, err error) {
	fileNameTmp := fullPath + "." + strconv.Itoa(rand.Int())
	return os.OpenFile(fileNameTmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, os.ModePerm)
}

func ReplaceFileExt(fileName string, newExt string) string {
	logExt := path.Ext(fileName)
	return fileName[0:len(fileName)-len(logExt)] + newExt
}

// ModTime returns the modification time of path, or the zero time if the
// file does not exist.
func ModTime(path string) (time.Time, bool) {
	stat, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return stat.ModTime(), true
}

// IsUpToDate reports whether target exists and is not older than any of
// deps. A missing target is never up to date; a missing dependency makes
// the comparison fail closed (not up to date), since a vanished dependency
// means the target must be rebuilt to find out whether it still applies.
func IsUpToDate(target string, deps []string) (bool, error) {
	targetTime, ok := ModTime(target)
	if !ok {
		return false, nil
	}

	for _, dep := range deps {
		depTime, ok := ModTime(dep)
		if !ok {
			return false, nil
		}
		if depTime.After(targetTime) {
			return false, nil
		}
	}

	return true, nil
}
