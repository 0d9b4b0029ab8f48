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

	"github.com/srediag/ringshm/internal/mmap"
)

// DefaultCapacity is the slot count used when a caller does not specify
// one explicitly.
const DefaultCapacity = 1024

// poolDepth is the number of pre-built Message instances each producer and
// consumer warms its object pool with.
const poolDepth = 64

// BlockingProducer is the one-writer side of a blocking SPSC ring: when
// the ring is full it reports so to the caller (NextToDispatch returns
// false) rather than overwriting unread slots, mirroring
// BlockingRingProducer from the original.
type BlockingProducer[E Message] struct {
	region  *mmap.Region
	indexer slotIndexer

	capacity       int64
	maxMessageSize int32
	dataOffset     int64

	offerSeq sequenceCell
	pollSeq  sequenceCell

	lastOfferedSeq       int64
	maxSeqBeforeWrapping int64

	pool    *objectPool[E]
	pending []E
	state   SessionState
}

// OpenBlockingProducer creates or attaches to a blocking SPSC ring at path.
// capacity may be -1 only when attaching to a file that already persists
// one (see spec §4.5); otherwise it must be a positive slot count agreed
// with the consumer out of band.
func OpenBlockingProducer[E Message](path string, capacity int64, maxMessageSize int32, builder Builder[E]) (*BlockingProducer[E], error) {
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("%w: maxMessageSize must be positive", ErrInvalidArgument)
	}

	resolvedCapacity, create, err := resolveBlockingCapacity(path, capacity, maxMessageSize)
	if err != nil {
		return nil, err
	}

	totalSize := blockingTotalSize(resolvedCapacity, maxMessageSize)
	if !create {
		if err := validateFileLength(path, totalSize); err != nil {
			return nil, err
		}
	}
	region, err := mmap.Open(path, totalSize, create)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}

	p := &BlockingProducer[E]{
		region:         region,
		indexer:        newSlotIndexer(resolvedCapacity),
		capacity:       resolvedCapacity,
		maxMessageSize: maxMessageSize,
		dataOffset:     headerSizeBlocking,
		offerSeq:       newSequenceCell(region, 0),
		pollSeq:        newSequenceCell(region, cpuCacheLine),
		pool:           newObjectPool(builder, poolDepth),
	}

	if create {
		binary.LittleEndian.PutUint32(region.Bytes()[capacityTrailerOffset:], uint32(resolvedCapacity))
		binary.LittleEndian.PutUint32(region.Bytes()[capacityTrailerOffset+4:], uint32(maxMessageSize))
	}

	p.lastOfferedSeq = p.offerSeq.get()
	p.maxSeqBeforeWrapping = p.pollSeq.get() + p.capacity
	return p, nil
}

// resolveBlockingCapacity resolves the capacity to open with and whether the
// file still needs creating. When the file already persists a header, an
// explicit capacity is cross-checked against it rather than silently
// accepted (spec §4.5: a mismatch must fail with ErrConfigMismatch, not map
// slot offsets past the file's actual, already-persisted layout).
func resolveBlockingCapacity(path string, capacity int64, maxMessageSize int32) (int64, bool, error) {
	values, ok, err := readPersistedHeaderValuesIfExists(path)
	if err != nil {
		return 0, false, err
	}

	if capacity > 0 {
		if ok && (values.capacity != int32(capacity) || values.maxMessageSize != maxMessageSize) {
			return 0, false, fmt.Errorf("%w: file persists capacity=%d maxMessageSize=%d, caller requested capacity=%d maxMessageSize=%d", ErrConfigMismatch, values.capacity, values.maxMessageSize, capacity, maxMessageSize)
		}
		return capacity, !ok, nil
	}

	if !ok {
		return 0, false, fmt.Errorf("%w: capacity -1 requires an existing file at %s", ErrFileNotFound, path)
	}
	if values.maxMessageSize != maxMessageSize {
		return 0, false, fmt.Errorf("%w: file has maxMessageSize %d, caller requested %d", ErrConfigMismatch, values.maxMessageSize, maxMessageSize)
	}
	return int64(values.capacity), false, nil
}

// LastOfferedSequence returns the highest sequence number this producer
// has locally advanced to, including any not-yet-flushed pending messages.
func (p *BlockingProducer[E]) LastOfferedSequence() int64 { return p.lastOfferedSeq }

// State reports whether the producer currently has pending, unflushed
// messages.
func (p *BlockingProducer[E]) State() SessionState { return p.state }

// NextToDispatch advances the local offer sequence by one and returns a
// pooled message instance to populate, plus true. If the ring is full
// (the consumer has not caught up enough to make room) it returns the
// zero value and false, leaving the producer's state unchanged.
func (p *BlockingProducer[E]) NextToDispatch() (E, bool) {
	var zero E

	p.lastOfferedSeq++
	if p.lastOfferedSeq > p.maxSeqBeforeWrapping {
		p.maxSeqBeforeWrapping = p.pollSeq.get() + p.capacity
		if p.lastOfferedSeq > p.maxSeqBeforeWrapping {
			p.lastOfferedSeq--
			return zero, false
		}
	}

	obj := p.pool.get()
	p.pending = append(p.pending, obj)
	p.state = Pending
	return obj, true
}

// Flush serializes every pending message into its slot, in order, then
// publishes the new offer sequence with release semantics so the
// consumer can observe it.
func (p *BlockingProducer[E]) Flush() error {
	seq := p.lastOfferedSeq - int64(len(p.pending)) + 1

	for _, obj := range p.pending {
		index := p.indexer.index(seq)
		offset := p.dataOffset + index*int64(p.maxMessageSize)
		n, err := obj.WriteTo(p.region.Bytes()[offset : offset+int64(p.maxMessageSize)])
		if err != nil {
			return fmt.Errorf("ring: write message at sequence %d: %w", seq, err)
		}
		if n > int(p.maxMessageSize) {
			return fmt.Errorf("%w: message wrote %d bytes, slot is %d", ErrInvalidArgument, n, p.maxMessageSize)
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
func (p *BlockingProducer[E]) Close(deleteFile bool) error {
	return p.region.Close(deleteFile)
}

// BlockingConsumer is the one-reader side of a blocking SPSC ring.
type BlockingConsumer[E Message] struct {
	region  *mmap.Region
	indexer slotIndexer

	capacity       int64
	maxMessageSize int32
	dataOffset     int64

	offerSeq sequenceCell
	pollSeq  sequenceCell

	lastPolledSeq int64
	fetchCount    int64

	data  E
	state SessionState
}

// OpenBlockingConsumer attaches to an existing blocking SPSC ring at path;
// it does not create the file, and fails with ErrFileNotFound if there is
// none. capacity is either -1 (read from the persisted header) or must
// match the persisted value.
func OpenBlockingConsumer[E Message](path string, capacity int64, maxMessageSize int32, builder Builder[E]) (*BlockingConsumer[E], error) {
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("%w: maxMessageSize must be positive", ErrInvalidArgument)
	}

	resolvedCapacity, err := resolveConsumerCapacity(path, capacity, maxMessageSize)
	if err != nil {
		return nil, err
	}

	totalSize := blockingTotalSize(resolvedCapacity, maxMessageSize)
	if err := validateFileLength(path, totalSize); err != nil {
		return nil, err
	}
	region, err := mmap.Open(path, totalSize, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}

	c := &BlockingConsumer[E]{
		region:         region,
		indexer:        newSlotIndexer(resolvedCapacity),
		capacity:       resolvedCapacity,
		maxMessageSize: maxMessageSize,
		dataOffset:     headerSizeBlocking,
		offerSeq:       newSequenceCell(region, 0),
		pollSeq:        newSequenceCell(region, cpuCacheLine),
		data:           builder(),
	}
	c.lastPolledSeq = c.pollSeq.get()
	return c, nil
}

// resolveConsumerCapacity mirrors resolveBlockingCapacity's cross-check: a
// consumer always attaches to an existing file, so an explicit capacity that
// disagrees with the persisted header must fail rather than be trusted.
func resolveConsumerCapacity(path string, capacity int64, maxMessageSize int32) (int64, error) {
	values, ok, err := readPersistedHeaderValuesIfExists(path)
	if err != nil {
		return 0, err
	}
	if !ok {
		if capacity > 0 {
			return 0, fmt.Errorf("%w: no file at %s to attach to", ErrFileNotFound, path)
		}
		return 0, fmt.Errorf("%w: capacity -1 requires an existing file at %s", ErrFileNotFound, path)
	}
	if values.maxMessageSize != maxMessageSize {
		return 0, fmt.Errorf("%w: file has maxMessageSize %d, caller requested %d", ErrConfigMismatch, values.maxMessageSize, maxMessageSize)
	}
	if capacity > 0 && values.capacity != int32(capacity) {
		return 0, fmt.Errorf("%w: file persists capacity=%d, caller requested capacity=%d", ErrConfigMismatch, values.capacity, capacity)
	}
	return int64(values.capacity), nil
}

// LastPolledSequence returns the highest sequence number fetched so far,
// including any not-yet-acknowledged in-flight fetches.
func (c *BlockingConsumer[E]) LastPolledSequence() int64 { return c.lastPolledSeq }

// State reports whether the consumer currently has in-flight, unacked
// fetches.
func (c *BlockingConsumer[E]) State() SessionState { return c.state }

// AvailableToFetch returns how many messages the producer has published
// beyond what this consumer has fetched.
func (c *BlockingConsumer[E]) AvailableToFetch() int64 {
	return c.offerSeq.get() - c.lastPolledSeq
}

// Fetch deserializes the next message in sequence and returns it, plus
// true. It returns false without advancing if no message is available.
func (c *BlockingConsumer[E]) Fetch() (E, bool) {
	var zero E
	if c.AvailableToFetch() <= 0 {
		return zero, false
	}

	c.fetchCount++
	c.lastPolledSeq++
	index := c.indexer.index(c.lastPolledSeq)
	offset := c.dataOffset + index*int64(c.maxMessageSize)
	if _, err := c.data.ReadFrom(c.region.Bytes()[offset : offset+int64(c.maxMessageSize)]); err != nil {
		c.lastPolledSeq--
		c.fetchCount--
		return zero, false
	}
	c.state = Fetching
	return c.data, true
}

// RollBack un-fetches the most recent count fetches since the last
// DoneFetching, so a future Fetch will return them again.
func (c *BlockingConsumer[E]) RollBack(count int64) error {
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

// DoneFetching publishes the new poll sequence with release semantics,
// making the slots this consumer just read eligible for producer reuse.
func (c *BlockingConsumer[E]) DoneFetching() {
	if c.fetchCount == 0 {
		return
	}
	c.pollSeq.set(c.lastPolledSeq)
	c.fetchCount = 0
	c.state = Idle
}

// Close releases the mapped region. deleteFile removes the backing file
// too; only the process that created the ring should pass true.
func (c *BlockingConsumer[E]) Close(deleteFile bool) error {
	return c.region.Close(deleteFile)
}
