// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build unix

package shm

import (
	"os"
	"strings"
)

func tempDirectory() string {
	dir := os.TempDir()
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}
