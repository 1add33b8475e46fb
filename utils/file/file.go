/*
 * Copyright 2022 Google LLC.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package file is a slim portability layer over the "os" package. Every
// function takes a context so that callers can later be routed to remote
// storage without changing signatures.
package file

import (
	"context"
	"io"
	"os"
)

// File for providing the shim layer
type File struct {
	file *os.File
}

// IO is a convenience interface.
type IO io.ReadWriteCloser

// IO to get the os.File member
func (f *File) IO(ctx context.Context) IO {
	return f.file
}

// Close releases the file.
func (f *File) Close(ctx context.Context) error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

// Create a file
func Create(ctx context.Context, name string) (File, error) {
	file, err := os.Create(name)
	return File{file: file}, err
}

// OpenRead opens the file for reading.
func OpenRead(ctx context.Context, name string) (File, error) {
	file, err := os.Open(name)
	return File{file: file}, err
}

// ReadFile returns the entire contents of the named file.
func ReadFile(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile writes data to a file named by filename.
func WriteFile(ctx context.Context, name string, data []byte) error {
	return os.WriteFile(name, data, 0644)
}

// Exists tells if "name" is an existing regular file. Names that cannot be
// a path at all (e.g. an inline XML document) simply report false.
func Exists(ctx context.Context, name string) bool {
	if len(name) == 0 || len(name) > 4096 {
		return false
	}
	stat, err := os.Stat(name)
	if err != nil {
		return false
	}
	return stat.Mode().IsRegular()
}
