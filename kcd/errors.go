package kcd

import "errors"

// Sentinel errors for the KCD subset (spec.md §7 KcdParseError).
var (
	ErrMultiplexed  = errors.New("kcd: multiplex signals are not supported")
	ErrMalformedXML = errors.New("kcd: malformed XML")
	ErrBadAttribute = errors.New("kcd: malformed attribute value")
)
