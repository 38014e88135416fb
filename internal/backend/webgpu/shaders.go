package webgpu

// WGSL compute shaders for the linear-algebra kernels.
// All kernels operate on float32 row-major buffers.

// Workgroup tile for the 2D/3D product kernels (must match @workgroup_size).
const tile = 8

// gemmShader computes result = alpha*A@B + beta*result for every batch
// entry. The host initializes result with C (or zeros), so GEMM, GEMV
// (N = 1) and BatchedGEMM share one pipeline.
const gemmShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    batch: u32,
    M: u32,
    K: u32,
    N: u32,
    alpha: f32,
    beta: f32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let batch_idx = global_id.z;
    let row = global_id.y;
    let col = global_id.x;

    if (batch_idx >= params.batch || row >= params.M || col >= params.N) {
        return;
    }

    let a_offset = batch_idx * params.M * params.K;
    let b_offset = batch_idx * params.K * params.N;
    let c_offset = batch_idx * params.M * params.N;

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        sum = sum + a[a_offset + row * params.K + k] * b[b_offset + k * params.N + col];
    }

    let c_idx = c_offset + row * params.N + col;
    if (params.beta == 0.0) {
        result[c_idx] = params.alpha * sum;
    } else {
        result[c_idx] = params.alpha * sum + params.beta * result[c_idx];
    }
}
`

// affineShader computes result[r, o] += sum_i w[o, i] * x[r, i].
// The host initializes every row of result with the bias.
const affineShader = `
@group(0) @binding(0) var<storage, read> w: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    batch: u32,
    out_features: u32,
    in_features: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let r = global_id.y;
    let o = global_id.x;

    if (r >= params.batch || o >= params.out_features) {
        return;
    }

    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.in_features; i = i + 1u) {
        sum = sum + w[o * params.in_features + i] * x[r * params.in_features + i];
    }

    let idx = r * params.out_features + o;
    result[idx] = result[idx] + sum;
}
`
