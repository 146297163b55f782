// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build unix && !linux

package shm

func shmDirectory() string {
	return tempDirectory()
}
