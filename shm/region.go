// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build unix

// Package shm provides named shared memory regions, which can be mapped by several processes.
package shm

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/nxgtw/go-mtx/internal/common"
)

const (
	maxNameLen = 255
)

// Region is a read-write shared mapping of a named memory object.
type Region struct {
	data []byte
}

// Open creates or opens a named shared memory object and maps it into the address space.
//	name - object name. it must not contain '/' and must be shorter, than 255 symbols.
//	flag - a combination of os.O_CREATE and os.O_EXCL. see common.OpenOrCreate.
//	perm - object's permission bits.
//	size - mapping size. a new object is truncated to this size,
//	an existing object must be at least this size.
// It returns the region and a flag, whether the object was created.
func Open(name string, flag int, perm os.FileMode, size int) (*Region, bool, error) {
	if size <= 0 {
		return nil, false, errors.Errorf("invalid region size %d", size)
	}
	path, err := shmName(name)
	if err != nil {
		return nil, false, err
	}
	var file *os.File
	creator := func(create bool) error {
		osFlag := os.O_RDWR
		if create {
			osFlag |= os.O_CREATE | os.O_EXCL
		}
		var err error
		file, err = os.OpenFile(path, osFlag, perm)
		return err
	}
	created, resultErr := common.OpenOrCreate(creator, flag)
	if resultErr != nil {
		return nil, false, errors.Wrap(resultErr, "failed to open shm object")
	}
	defer func() {
		file.Close()
		if resultErr != nil && created {
			os.Remove(path)
		}
	}()
	if created {
		if resultErr = file.Truncate(int64(size)); resultErr != nil {
			return nil, false, errors.Wrap(resultErr, "failed to truncate shm object")
		}
	} else {
		var info os.FileInfo
		if info, resultErr = file.Stat(); resultErr != nil {
			return nil, false, errors.Wrap(resultErr, "failed to stat shm object")
		}
		if info.Size() < int64(size) {
			resultErr = errors.Errorf("existing object has invalid size %d", info.Size())
			return nil, false, resultErr
		}
	}
	var data []byte
	if data, resultErr = unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED); resultErr != nil {
		return nil, false, errors.Wrap(resultErr, "mmap failed")
	}
	return &Region{data: data}, created, nil
}

// Data returns mapped memory.
func (r *Region) Data() []byte {
	return r.data
}

// Size returns the size of the mapping.
func (r *Region) Size() int {
	return len(r.data)
}

// Close unmaps the region. The object itself is not removed.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return errors.Wrap(err, "munmap failed")
}

// Destroy permanently removes the object with the given name.
// It is not an error, if the object does not exist.
func Destroy(name string) error {
	path, err := shmName(name)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove shm object")
	}
	return nil
}

func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	if len(name) == 0 || len(name) >= maxNameLen || strings.Contains(name, "/") {
		return "", errors.New("invalid shm name")
	}
	return shmDirectory() + name, nil
}
