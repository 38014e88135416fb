//go:build windows

package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.cacheMu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.cacheMu.RUnlock()
		return shader
	}
	b.cacheMu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.cacheMu.Lock()
	b.shaders[name] = shader
	b.cacheMu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.cacheMu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.cacheMu.RUnlock()
		return pipeline
	}
	b.cacheMu.RUnlock()

	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.cacheMu.Lock()
	b.pipelines[name] = pipeline
	b.cacheMu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer and uploads data into it.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer padded to 16 bytes.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), alignedSize), data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer through a staging buffer.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	if err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	result := make([]byte, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(result, unsafe.Slice((*byte)(mappedPtr), size))
	stagingBuffer.Unmap()

	return result, nil
}

// dispatch describes one kernel launch: two read-only inputs, a
// read-write output seeded with init, and a uniform params block.
type dispatch struct {
	name, code string
	lhs, rhs   []byte
	init       []byte
	params     []byte
	groups     [3]uint32
}

// run uploads the operands, executes the kernel and returns the output
// bytes. Callers must hold b.mu.
func (b *Backend) run(d dispatch) ([]byte, error) {
	if b.released {
		return nil, fmt.Errorf("backend released")
	}

	shader := b.compileShader(d.name, d.code)
	pipeline := b.getOrCreatePipeline(d.name, shader)

	bufferLHS := b.createBuffer(d.lhs, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferLHS.Release()

	bufferRHS := b.createBuffer(d.rhs, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferRHS.Release()

	resultSize := uint64(len(d.init))
	bufferResult := b.createBuffer(d.init, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	defer bufferResult.Release()

	bufferParams := b.createUniformBuffer(d.params)
	defer bufferParams.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferLHS, 0, uint64(len(d.lhs))),
		wgpu.BufferBindingEntry(1, bufferRHS, 0, uint64(len(d.rhs))),
		wgpu.BufferBindingEntry(2, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(3, bufferParams, 0, (uint64(len(d.params))+15)&^15),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(d.groups[0], d.groups[1], d.groups[2])
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	return b.readBuffer(bufferResult, resultSize)
}

// groups returns ceil(n / tile) as a workgroup count.
func groups(n int) uint32 {
	//nolint:gosec // G115: dimensions are validated positive
	return uint32((n + tile - 1) / tile)
}
