package fiber

// sizeOfCacheLine is the assumed cache line size used to pad hot atomic
// fields against false sharing.
const sizeOfCacheLine = 64

// sizeOfAtomicUint64 is the size in bytes of atomic.Uint64, used to compute
// padding alongside sizeOfCacheLine.
const sizeOfAtomicUint64 = 8
