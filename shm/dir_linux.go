// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	defaultShmPath   = "/dev/shm/"
	cShmfsSuperMagic = 0x01021994
	cRamfsMagic      = 0x858458f6
)

var (
	shmPathOnce sync.Once
	shmPath     string
)

// shmDirectory returns a tmpfs directory for shared objects.
// If there is no such directory, objects are placed into os.TempDir.
func shmDirectory() string {
	shmPathOnce.Do(locateShmFs)
	return shmPath
}

// glibc/sysdeps/unix/sysv/linux/shm-directory.c
func locateShmFs() {
	switch {
	case checkShmPath(defaultShmPath):
		shmPath = defaultShmPath
	default:
		if shmPath = shmFsFromMounts(); shmPath == "" {
			shmPath = tempDirectory()
		}
	}
}

func checkShmPath(path string) bool {
	var statfs unix.Statfs_t
	if err := unix.Statfs(path, &statfs); err != nil {
		return false
	}
	fsType := int64(statfs.Type)
	return fsType == cShmfsSuperMagic || fsType == cRamfsMagic
}

func shmFsFromMounts() string {
	fsFile, err := os.Open("/proc/mounts")
	if err != nil {
		if fsFile, err = os.Open("/etc/fstab"); err != nil {
			return ""
		}
	}
	defer fsFile.Close()
	return shmFsFromReader(fsFile)
}

// shmFsFromReader returns the first tmpfs or shm mount point from a fstab-formatted reader.
func shmFsFromReader(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if dir, fsType := fields[1], fields[2]; fsType == "tmpfs" || fsType == "shm" {
			if !strings.HasSuffix(dir, "/") {
				dir += "/"
			}
			return dir
		}
	}
	return ""
}
