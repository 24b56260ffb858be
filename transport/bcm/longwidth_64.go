//go:build amd64 || arm64 || riscv64 || ppc64 || ppc64le || mips64 || mips64le || s390x

package bcm

// longWidth is the size in bytes of the C `long` type on this GOARCH,
// which determines struct bcm_msg_head's ival1/ival2 field width and
// alignment (spec.md §4.5: "implementations must compute alignment to
// match the platform's long width").
const longWidth = 8
