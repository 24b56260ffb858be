package config

import (
	"fmt"
	"sort"
)

// Configuration holds a set of frames, the identifiers of "this node," and
// the bus name, plus a derived signal-name index rebuilt on every mutation.
// Per spec.md §3, each signal name must appear in at most one frame across
// the whole configuration — AddFrame enforces this eagerly.
type Configuration struct {
	BusName     string
	EgoNodeIDs  map[string]struct{}
	frames      map[uint32]Frame
	signalIndex map[string]uint32 // signal name -> frame ID
}

// New creates an empty Configuration for busName, with egoNodeIDs
// identifying the node this process represents.
func New(busName string, egoNodeIDs ...string) *Configuration {
	c := &Configuration{
		BusName:     busName,
		EgoNodeIDs:  make(map[string]struct{}, len(egoNodeIDs)),
		frames:      make(map[uint32]Frame),
		signalIndex: make(map[string]uint32),
	}
	for _, id := range egoNodeIDs {
		c.EgoNodeIDs[id] = struct{}{}
	}
	return c
}

// AddFrame validates and inserts f, rejecting a duplicate frame ID or any
// signal name already used elsewhere in the configuration.
func (c *Configuration) AddFrame(f Frame) error {
	if err := c.validateFrame(f); err != nil {
		return err
	}
	if _, exists := c.frames[f.ID]; exists {
		return fmt.Errorf("%w: %#x", ErrDuplicateFrameID, f.ID)
	}
	for _, s := range f.Signals {
		if owner, exists := c.signalIndex[s.Name]; exists {
			return fmt.Errorf("%w: %q already defined in frame %#x", ErrDuplicateSignalName, s.Name, owner)
		}
	}
	c.frames[f.ID] = f
	for _, s := range f.Signals {
		c.signalIndex[s.Name] = f.ID
	}
	return nil
}

// RemoveFrame deletes the frame (and its signals' index entries).
func (c *Configuration) RemoveFrame(id uint32) error {
	f, ok := c.frames[id]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrUnknownFrame, id)
	}
	for _, s := range f.Signals {
		delete(c.signalIndex, s.Name)
	}
	delete(c.frames, id)
	return nil
}

// Frame returns the frame definition for id.
func (c *Configuration) Frame(id uint32) (Frame, bool) {
	f, ok := c.frames[id]
	return f, ok
}

// Frames returns every frame ID, sorted ascending for deterministic
// iteration (used by DescriptiveASCIIArt and KcdIo's writer).
func (c *Configuration) Frames() []uint32 {
	ids := make([]uint32, 0, len(c.frames))
	for id := range c.frames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FramesForEgo returns the IDs of frames this node produces (outgoing).
func (c *Configuration) FramesForEgo() []uint32 {
	var ids []uint32
	for _, id := range c.Frames() {
		if c.isEgoProducer(c.frames[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

// FramesForOthers returns the IDs of frames this node does not produce
// (incoming).
func (c *Configuration) FramesForOthers() []uint32 {
	var ids []uint32
	for _, id := range c.Frames() {
		if !c.isEgoProducer(c.frames[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Configuration) isEgoProducer(f Frame) bool {
	for node := range f.ProducerNodeIDs {
		if _, ok := c.EgoNodeIDs[node]; ok {
			return true
		}
	}
	return false
}

// FindSignal returns the owning frame ID and signal definition for name, in
// O(1) via the derived index.
func (c *Configuration) FindSignal(name string) (uint32, Signal, error) {
	frameID, ok := c.signalIndex[name]
	if !ok {
		return 0, Signal{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	f := c.frames[frameID]
	sig, _ := f.FindSignal(name)
	return frameID, sig, nil
}

// Validate re-checks every frame's invariants and global signal-name
// uniqueness, for configurations whose frames may have changed since
// AddFrame checked them (Bus.Open calls it before binding).
func (c *Configuration) Validate() error {
	seen := make(map[string]uint32, len(c.signalIndex))
	for _, id := range c.Frames() {
		f := c.frames[id]
		if err := c.validateFrame(f); err != nil {
			return err
		}
		for _, s := range f.Signals {
			if owner, exists := seen[s.Name]; exists {
				return fmt.Errorf("%w: %q in both %#x and %#x", ErrDuplicateSignalName, s.Name, owner, id)
			}
			seen[s.Name] = id
		}
	}
	return nil
}

func (c *Configuration) validateFrame(f Frame) error {
	if f.DLC < 1 || f.DLC > 8 {
		return fmt.Errorf("%w: frame %#x has dlc=%d", ErrInvalidDLC, f.ID, f.DLC)
	}
	if f.ID > f.MaxFrameID() {
		return fmt.Errorf("%w: frame %#x exceeds %#x", ErrInvalidFrameID, f.ID, f.MaxFrameID())
	}
	names := make(map[string]struct{}, len(f.Signals))
	for _, s := range f.Signals {
		if s.Name == "" {
			return fmt.Errorf("%w: frame %#x", ErrEmptyName, f.ID)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("%w: %q repeated in frame %#x", ErrDuplicateSignalName, s.Name, f.ID)
		}
		names[s.Name] = struct{}{}
		if err := s.Definition.Validate(); err != nil {
			return fmt.Errorf("signal %q: %w", s.Name, err)
		}
		minDLC, err := s.Definition.MinDLC()
		if err != nil {
			return fmt.Errorf("signal %q: %w", s.Name, err)
		}
		if minDLC > f.DLC {
			return fmt.Errorf("%w: signal %q needs dlc>=%d, frame %#x has dlc=%d", ErrDLCOverflow, s.Name, minDLC, f.ID, f.DLC)
		}
	}
	return nil
}

// Clone returns a defensive deep copy, used by Bus.Open to bind without
// exposing the caller's mutable Configuration to the transport (spec.md §5:
// "the Configuration is treated as immutable after binding").
func (c *Configuration) Clone() *Configuration {
	clone := New(c.BusName)
	for node := range c.EgoNodeIDs {
		clone.EgoNodeIDs[node] = struct{}{}
	}
	for _, id := range c.Frames() {
		f := c.frames[id]
		nf := f
		nf.ProducerNodeIDs = make(map[string]struct{}, len(f.ProducerNodeIDs))
		for n := range f.ProducerNodeIDs {
			nf.ProducerNodeIDs[n] = struct{}{}
		}
		nf.Signals = append([]Signal(nil), f.Signals...)
		clone.frames[id] = nf
		for _, s := range nf.Signals {
			clone.signalIndex[s.Name] = id
		}
	}
	return clone
}
