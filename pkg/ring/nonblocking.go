/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ring

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/srediag/ringshm/internal/mmap"
)

// NonBlockingProducer never waits on a consumer: once the ring wraps it
// simply overwrites the oldest unread slot. There is no fetch sequence
// cell for it to consult, so it has no notion of "full".
type NonBlockingProducer[E Message] struct {
	region  *mmap.Region
	indexer slotIndexer

	capacity       int64
	maxMessageSize int32
	slotSize       int64
	dataOffset     int64
	withChecksum   bool

	offerSeq sequenceCell

	lastOfferedSeq int64

	pool    *objectPool[E]
	pending []E
	state   SessionState
}

// NonBlockingOption configures OpenNonBlockingProducer/Consumer.
type NonBlockingOption func(*nonBlockingConfig)

type nonBlockingConfig struct {
	withChecksum bool
}

// WithChecksum enables the XXH64 checksum prefix described in spec §6: the
// producer stamps each slot with a hash of (sequence || payload) and the
// consumer verifies it on fetch, rejecting torn reads caused by the
// producer wrapping mid-read.
func WithChecksum() NonBlockingOption {
	return func(c *nonBlockingConfig) { c.withChecksum = true }
}

func resolveNonBlockingConfig(opts []NonBlockingOption) nonBlockingConfig {
	var c nonBlockingConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func nonBlockingSlotSize(maxMessageSize int32, withChecksum bool) int64 {
	if withChecksum {
		return int64(checksumSize) + int64(maxMessageSize)
	}
	return int64(maxMessageSize)
}

// OpenNonBlockingProducer creates or attaches to a non-blocking SPSC ring
// at path. capacity may be -1 only when attaching to a file whose length
// lets capacity be inferred (see spec §4.5).
func OpenNonBlockingProducer[E Message](path string, capacity int64, maxMessageSize int32, builder Builder[E], opts ...NonBlockingOption) (*NonBlockingProducer[E], error) {
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("%w: maxMessageSize must be positive", ErrInvalidArgument)
	}
	cfg := resolveNonBlockingConfig(opts)
	slotSize := nonBlockingSlotSize(maxMessageSize, cfg.withChecksum)

	resolvedCapacity, create, err := resolveNonBlockingCapacity(path, capacity, slotSize)
	if err != nil {
		return nil, err
	}

	totalSize := nonBlockingTotalSize(resolvedCapacity, slotSize)
	if !create {
		if err := validateFileLength(path, totalSize); err != nil {
			return nil, err
		}
	}
	region, err := mmap.Open(path, totalSize, create)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}

	p := &NonBlockingProducer[E]{
		region:         region,
		indexer:        newSlotIndexer(resolvedCapacity),
		capacity:       resolvedCapacity,
		maxMessageSize: maxMessageSize,
		slotSize:       slotSize,
		dataOffset:     headerSizeNonBlocking,
		withChecksum:   cfg.withChecksum,
		offerSeq:       newSequenceCell(region, 0),
		pool:           newObjectPool(builder, poolDepth),
	}
	p.lastOfferedSeq = p.offerSeq.get()
	return p, nil
}

// resolveNonBlockingCapacity infers capacity from file length when the
// caller passes -1, per spec §4.5. There is no persisted (capacity,
// maxMessageSize) trailer for this variant; an explicit capacity on attach
// is instead cross-checked by validateFileLength against the resulting
// total region size once the caller's config (including WithChecksum) is
// known.
func resolveNonBlockingCapacity(path string, capacity int64, slotSize int64) (int64, bool, error) {
	if capacity > 0 {
		return capacity, !fileExists(path), nil
	}
	length, ok, err := fileLengthIfExists(path)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, fmt.Errorf("%w: capacity -1 requires an existing file at %s", ErrFileNotFound, path)
	}
	inferred, err := inferCapacity(length, headerSizeNonBlocking, slotSize)
	if err != nil {
		return 0, false, err
	}
	return inferred, false, nil
}

// LastOfferedSequence returns the highest sequence number this producer
// has locally advanced to, including not-yet-flushed pending messages.
func (p *NonBlockingProducer[E]) LastOfferedSequence() int64 { return p.lastOfferedSeq }

// State reports whether the producer has pending, unflushed messages.
func (p *NonBlockingProducer[E]) State() SessionState { return p.state }

// NextToDispatch advances the local offer sequence and returns a pooled
// message instance to populate. Unlike the blocking variant this never
// fails: there is no consumer sequence to wait on.
func (p *NonBlockingProducer[E]) NextToDispatch() E {
	obj := p.pool.get()
	p.pending = append(p.pending, obj)
	p.lastOfferedSeq++
	p.state = Pending
	return obj
}

// Flush serializes every pending message into its slot (overwriting
// whatever was there, including a slot a slow consumer has not yet read)
// and publishes the new offer sequence with release semantics.
func (p *NonBlockingProducer[E]) Flush() error {
	seq := p.lastOfferedSeq - int64(len(p.pending)) + 1

	for _, obj := range p.pending {
		index := p.indexer.index(seq)
		offset := p.dataOffset + index*p.slotSize
		payloadOff := offset
		if p.withChecksum {
			payloadOff += int64(checksumSize)
		}

		payload := p.region.Bytes()[payloadOff : payloadOff+int64(p.maxMessageSize)]
		n, err := obj.WriteTo(payload)
		if err != nil {
			return fmt.Errorf("ring: write message at sequence %d: %w", seq, err)
		}
		if n > int(p.maxMessageSize) {
			return fmt.Errorf("%w: message wrote %d bytes, slot is %d", ErrInvalidArgument, n, p.maxMessageSize)
		}

		if p.withChecksum {
			sum := computeChecksum(seq, payload[:n])
			binary.BigEndian.PutUint64(p.region.Bytes()[offset:offset+int64(checksumSize)], sum)
		}

		p.pool.put(obj)
		seq++
	}

	p.pending = p.pending[:0]
	p.offerSeq.set(p.lastOfferedSeq)
	p.state = Idle
	return nil
}

// Close releases the mapped region. deleteFile removes the backing file
// too; only the process that created the ring should pass true.
func (p *NonBlockingProducer[E]) Close(deleteFile bool) error {
	return p.region.Close(deleteFile)
}

// NonBlockingConsumer fetches from a ring whose producer never waits. Its
// poll sequence is purely local bookkeeping (the variant's header has no
// cell for it, see spec §4.5): a consumer that restarts resumes from
// whatever offerSequence currently reads, not from where it left off.
type NonBlockingConsumer[E Message] struct {
	region  *mmap.Region
	indexer slotIndexer

	capacity          int64
	maxMessageSize    int32
	slotSize          int64
	dataOffset        int64
	withChecksum      bool
	fallBehindHorizon int64

	offerSeq sequenceCell

	lastPolledSeq int64
	fetchCount    int64

	data  E
	state SessionState
}

// OpenNonBlockingConsumer attaches to an existing non-blocking SPSC ring
// at path; it does not create the file. fallBehindTolerance restricts this
// consumer's allowed lag to round(tolerance*capacity), at least 1 (spec
// §4.6); it must be in (0, 1] and is ignored in checksum mode, where the
// allowed lag is the full capacity.
func OpenNonBlockingConsumer[E Message](path string, capacity int64, maxMessageSize int32, fallBehindTolerance float64, builder Builder[E], opts ...NonBlockingOption) (*NonBlockingConsumer[E], error) {
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("%w: maxMessageSize must be positive", ErrInvalidArgument)
	}
	if fallBehindTolerance <= 0 || fallBehindTolerance > 1 {
		return nil, fmt.Errorf("%w: fallBehindTolerance must be in (0, 1]", ErrInvalidArgument)
	}
	cfg := resolveNonBlockingConfig(opts)
	slotSize := nonBlockingSlotSize(maxMessageSize, cfg.withChecksum)

	resolvedCapacity, err := resolveNonBlockingConsumerCapacity(path, capacity, slotSize)
	if err != nil {
		return nil, err
	}

	totalSize := nonBlockingTotalSize(resolvedCapacity, slotSize)
	if err := validateFileLength(path, totalSize); err != nil {
		return nil, err
	}
	region, err := mmap.Open(path, totalSize, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}

	horizon := int64(math.Round(fallBehindTolerance * float64(resolvedCapacity)))
	if horizon < 1 {
		horizon = 1
	}
	if cfg.withChecksum {
		horizon = resolvedCapacity
	}

	c := &NonBlockingConsumer[E]{
		region:            region,
		indexer:           newSlotIndexer(resolvedCapacity),
		capacity:          resolvedCapacity,
		maxMessageSize:    maxMessageSize,
		slotSize:          slotSize,
		dataOffset:        headerSizeNonBlocking,
		withChecksum:      cfg.withChecksum,
		fallBehindHorizon: horizon,
		offerSeq:          newSequenceCell(region, 0),
		data:              builder(),
	}
	c.lastPolledSeq = c.offerSeq.get()
	return c, nil
}

func resolveNonBlockingConsumerCapacity(path string, capacity int64, slotSize int64) (int64, error) {
	if capacity > 0 {
		return capacity, nil
	}
	length, ok, err := fileLengthIfExists(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: capacity -1 requires an existing file at %s", ErrFileNotFound, path)
	}
	return inferCapacity(length, headerSizeNonBlocking, slotSize)
}

// LastPolledSequence returns the highest sequence number fetched so far.
func (c *NonBlockingConsumer[E]) LastPolledSequence() int64 { return c.lastPolledSeq }

// State reports whether the consumer has in-flight, unacked fetches.
func (c *NonBlockingConsumer[E]) State() SessionState { return c.state }

// AvailableToFetch returns how many messages are available, or -1 if the
// producer has wrapped past this consumer's fall-behind horizon
// (ErrLagOvertake).
func (c *NonBlockingConsumer[E]) AvailableToFetch() int64 {
	avail := c.offerSeq.get() - c.lastPolledSeq
	if avail > c.fallBehindHorizon {
		return -1
	}
	return avail
}

// Fetch deserializes the next message in sequence. It returns false
// without advancing if no message is available, the producer has
// overtaken this consumer, or (checksum mode) the slot's checksum does
// not match - in every case consumer counters are left unchanged so a
// retry observes a later, coherent ring state.
func (c *NonBlockingConsumer[E]) Fetch() (E, bool) {
	var zero E
	if c.AvailableToFetch() <= 0 {
		return zero, false
	}

	nextSeq := c.lastPolledSeq + 1
	index := c.indexer.index(nextSeq)
	offset := c.dataOffset + index*c.slotSize
	payloadOff := offset
	if c.withChecksum {
		payloadOff += int64(checksumSize)
	}

	payload := c.region.Bytes()[payloadOff : payloadOff+int64(c.maxMessageSize)]

	// Decode first: the checksum covers only the n bytes the producer
	// actually wrote (WriteTo's return value), not the whole maxMessageSize
	// slot, so the two sides only agree if this side hashes the same n.
	n, err := c.data.ReadFrom(payload)
	if err != nil {
		return zero, false
	}

	if c.withChecksum {
		stored := binary.BigEndian.Uint64(c.region.Bytes()[offset : offset+int64(checksumSize)])
		if stored != computeChecksum(nextSeq, payload[:n]) {
			return zero, false
		}
	}

	c.lastPolledSeq = nextSeq
	c.fetchCount++
	c.state = Fetching
	return c.data, true
}

// RollBack un-fetches the most recent count fetches since the last
// DoneFetching.
func (c *NonBlockingConsumer[E]) RollBack(count int64) error {
	if count < 0 || count > c.fetchCount {
		return fmt.Errorf("%w: fetched=%d requested=%d", ErrInvalidArgument, c.fetchCount, count)
	}
	c.lastPolledSeq -= count
	c.fetchCount -= count
	if c.fetchCount == 0 {
		c.state = Idle
	}
	return nil
}

// DoneFetching resets the in-flight fetch count. The non-blocking variant
// has no consumer sequence cell to publish (spec §4.6): there is nothing
// for the producer to wait on, so there is nothing to flush here.
func (c *NonBlockingConsumer[E]) DoneFetching() {
	c.fetchCount = 0
	c.state = Idle
}

// Close releases the mapped region. deleteFile removes the backing file
// too; only the process that created the ring should pass true.
func (c *NonBlockingConsumer[E]) Close(deleteFile bool) error {
	return c.region.Close(deleteFile)
}
