// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"io"
	"os"
)

// file is the subset of *os.File used by the rewrite protocol.
type file interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.Closer
	Stat() (os.FileInfo, error)
	Sync() error
}

// fileSystem is the path-addressed filesystem contract consumed by Job.
type fileSystem interface {
	Open(name string) (file, error)
	Create(name string, perm os.FileMode) (file, error)
	Stat(name string) (os.FileInfo, error)
	Rename(from string, to string) error
	Remove(name string) error
}

// osFileSystem implements fileSystem on top of package os.
type osFileSystem struct{}

func (osFileSystem) Open(name string) (file, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (osFileSystem) Create(name string, perm os.FileMode) (file, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (osFileSystem) Rename(from string, to string) error {
	return os.Rename(from, to)
}

func (osFileSystem) Remove(name string) error {
	return os.Remove(name)
}
