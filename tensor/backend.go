// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/accel/internal/tensor"

// Backend is the kernel set of one device kind.
//
// Implementations must be safe for concurrent use. See backend/cpu and
// backend/webgpu.
type Backend = tensor.Backend

// MockBackend is a reference Backend with fault injection, for tests.
type MockBackend = tensor.MockBackend

// NewMockBackend creates a mock backend reporting name.
func NewMockBackend(name string) *MockBackend {
	return tensor.NewMockBackend(name)
}
