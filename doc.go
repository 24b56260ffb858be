// Package cankit is a library for talking to a Controller Area Network bus
// on Linux via SocketCAN. It combines a declarative configuration model of
// frames and signals (config), a bit-exact signal codec (signal), a KCD XML
// reader/writer (kcd), and two transports over a CAN-family socket
// (transport/socketcan, transport/bcm) behind one synchronous Bus façade.
//
// The library opens no network listeners and starts no goroutines of its
// own: all periodic transmission and receive-side filtering is delegated to
// the kernel, and Bus.RecvNextSignals is the only call that blocks.
package cankit
