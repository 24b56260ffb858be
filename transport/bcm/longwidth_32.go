//go:build 386 || arm || mips || mipsle

package bcm

// longWidth is the size in bytes of the C `long` type on this GOARCH. See
// longwidth_64.go for why this controls BCM header layout.
const longWidth = 4
