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
	"fmt"

	"github.com/srediag/ringshm/internal/mmap"
)

// BroadcastProducer is the one-writer side of a blocking SPMC ring: every
// active consumer sees every message, and the producer is bounded by
// whichever active consumer is slowest (min-over-active-consumers, see
// spec §4.7). A stuck or crashed consumer can be excluded from that
// calculation with DisableConsumer.
type BroadcastProducer[E Message] struct {
	region  *mmap.Region
	indexer slotIndexer

	capacity          int64
	numberOfConsumers int
	maxMessageSize    int32
	dataOffset        int64

	offerSeq  sequenceCell
	fetchSeqs []sequenceCell

	lastOfferedSeq       int64
	maxSeqBeforeWrapping int64

	pool    *objectPool[E]
	pending []E
	state   SessionState
}

// OpenBroadcastProducer creates or attaches to a broadcast ring at path
// with room for numberOfConsumers independent readers.
func OpenBroadcastProducer[E Message](path string, capacity int64, maxMessageSize int32, numberOfConsumers int, builder Builder[E]) (*BroadcastProducer[E], error) {
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("%w: maxMessageSize must be positive", ErrInvalidArgument)
	}
	if numberOfConsumers <= 0 {
		return nil, fmt.Errorf("%w: numberOfConsumers must be positive", ErrInvalidArgument)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: broadcast producer requires a positive capacity", ErrInvalidArgument)
	}

	headerSize := broadcastHeaderSize(numberOfConsumers)
	totalSize := broadcastTotalSize(capacity, numberOfConsumers, int64(maxMessageSize))
	create := !fileExists(path)
	if !create {
		if err := validateFileLength(path, totalSize); err != nil {
			return nil, err
		}
	}
	region, err := mmap.Open(path, totalSize, create)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}

	p := &BroadcastProducer[E]{
		region:            region,
		indexer:           newSlotIndexer(capacity),
		capacity:          capacity,
		numberOfConsumers: numberOfConsumers,
		maxMessageSize:    maxMessageSize,
		dataOffset:        headerSize,
		offerSeq:          newSequenceCell(region, 0),
		fetchSeqs:         make([]sequenceCell, numberOfConsumers),
		pool:              newObjectPool(builder, poolDepth),
	}
	for i := range p.fetchSeqs {
		p.fetchSeqs[i] = newSequenceCell(region, (i+1)*cpuCacheLine)
	}

	p.lastOfferedSeq = p.offerSeq.get()
	p.maxSeqBeforeWrapping = p.minFetchSequence() + p.capacity
	return p, nil
}

func (p *BroadcastProducer[E]) minFetchSequence() int64 {
	min := disabledSentinel
	for _, cell := range p.fetchSeqs {
		if v := cell.get(); v < min {
			min = v
		}
	}
	return min
}

// DisableConsumer excludes consumerIndex from the slowest-consumer
// calculation that bounds this producer, so a stuck or crashed consumer
// cannot stall progress indefinitely (spec §4.7 escape hatch).
func (p *BroadcastProducer[E]) DisableConsumer(consumerIndex int) error {
	if consumerIndex < 0 || consumerIndex >= len(p.fetchSeqs) {
		return fmt.Errorf("%w: consumer index %d out of range [0,%d)", ErrInvalidArgument, consumerIndex, len(p.fetchSeqs))
	}
	p.fetchSeqs[consumerIndex].set(disabledSentinel)
	return nil
}

// LastOfferedSequence returns the highest sequence number this producer
// has locally advanced to, including not-yet-flushed pending messages.
func (p *BroadcastProducer[E]) LastOfferedSequence() int64 { return p.lastOfferedSeq }

// State reports whether the producer has pending, unflushed messages.
func (p *BroadcastProducer[E]) State() SessionState { return p.state }

// NextToDispatch advances the local offer sequence by one and returns a
// pooled message instance to populate, plus true. It returns false if the
// slowest active consumer has not yet made room.
func (p *BroadcastProducer[E]) NextToDispatch() (E, bool) {
	var zero E

	p.lastOfferedSeq++
	if p.lastOfferedSeq > p.maxSeqBeforeWrapping {
		p.maxSeqBeforeWrapping = p.minFetchSequence() + p.capacity
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
// publishes the new offer sequence with release semantics so every
// consumer can observe it.
func (p *BroadcastProducer[E]) Flush() error {
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
func (p *BroadcastProducer[E]) Close(deleteFile bool) error {
	return p.region.Close(deleteFile)
}

// BroadcastConsumer is one of numberOfConsumers independent readers of a
// broadcast ring, each tracking its own fetch sequence at consumerIndex.
type BroadcastConsumer[E Message] struct {
	region  *mmap.Region
	indexer slotIndexer

	capacity          int64
	numberOfConsumers int
	maxMessageSize    int32
	dataOffset        int64

	offerSeq sequenceCell
	fetchSeq sequenceCell

	lastFetchedSeq int64
	fetchCount     int64

	data  E
	state SessionState
}

// OpenBroadcastConsumer attaches to an existing broadcast ring at path as
// consumerIndex of numberOfConsumers; it does not create the file. Either capacity or numberOfConsumers
// may be -1 (inferred from file length) but not both.
func OpenBroadcastConsumer[E Message](path string, capacity int64, maxMessageSize int32, consumerIndex, numberOfConsumers int, builder Builder[E]) (*BroadcastConsumer[E], error) {
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("%w: maxMessageSize must be positive", ErrInvalidArgument)
	}
	if capacity <= 0 && numberOfConsumers <= 0 {
		return nil, fmt.Errorf("%w: capacity or numberOfConsumers must be supplied (at least one)", ErrInvalidArgument)
	}

	resolvedCapacity, resolvedConsumers, err := resolveBroadcastDimensions(path, capacity, numberOfConsumers, maxMessageSize)
	if err != nil {
		return nil, err
	}
	if consumerIndex < 0 || consumerIndex >= resolvedConsumers {
		return nil, fmt.Errorf("%w: consumer index %d out of range [0,%d)", ErrInvalidArgument, consumerIndex, resolvedConsumers)
	}

	headerSize := broadcastHeaderSize(resolvedConsumers)
	totalSize := broadcastTotalSize(resolvedCapacity, resolvedConsumers, int64(maxMessageSize))
	if err := validateFileLength(path, totalSize); err != nil {
		return nil, err
	}
	region, err := mmap.Open(path, totalSize, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}

	c := &BroadcastConsumer[E]{
		region:            region,
		indexer:           newSlotIndexer(resolvedCapacity),
		capacity:          resolvedCapacity,
		numberOfConsumers: resolvedConsumers,
		maxMessageSize:    maxMessageSize,
		dataOffset:        headerSize,
		offerSeq:          newSequenceCell(region, 0),
		fetchSeq:          newSequenceCell(region, (consumerIndex+1)*cpuCacheLine),
		data:              builder(),
	}
	c.lastFetchedSeq = c.fetchSeq.get()
	return c, nil
}

// resolveBroadcastDimensions resolves (capacity, numberOfConsumers). When
// both are supplied explicitly they are not cross-checked here: the caller
// validates the resulting total size against the file's actual length via
// validateFileLength once the region size is known.
func resolveBroadcastDimensions(path string, capacity int64, numberOfConsumers int, maxMessageSize int32) (int64, int, error) {
	if capacity > 0 && numberOfConsumers > 0 {
		return capacity, numberOfConsumers, nil
	}

	length, ok, err := fileLengthIfExists(path)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: inferring capacity or numberOfConsumers requires an existing file at %s", ErrFileNotFound, path)
	}

	if numberOfConsumers > 0 {
		headerSize := broadcastHeaderSize(numberOfConsumers)
		inferred, err := inferCapacity(length, headerSize, int64(maxMessageSize))
		if err != nil {
			return 0, 0, err
		}
		return inferred, numberOfConsumers, nil
	}

	// capacity > 0, numberOfConsumers <= 0: invert broadcastTotalSize for n.
	dataSize := capacity * int64(maxMessageSize)
	headerSize := length - dataSize
	if headerSize <= int64(cpuCacheLine) || (headerSize-int64(cpuCacheLine))%int64(cpuCacheLine) != 0 {
		return 0, 0, fmt.Errorf("%w: file length %d is not consistent with capacity %d and max message size %d", ErrConfigMismatch, length, capacity, maxMessageSize)
	}
	n := int((headerSize - int64(cpuCacheLine)) / int64(cpuCacheLine))
	return capacity, n, nil
}

// NumberOfConsumers returns the total number of consumers (including this
// one) the producer expects.
func (c *BroadcastConsumer[E]) NumberOfConsumers() int { return c.numberOfConsumers }

// LastFetchedSequence returns the highest sequence number fetched so far.
func (c *BroadcastConsumer[E]) LastFetchedSequence() int64 { return c.lastFetchedSeq }

// State reports whether the consumer currently has in-flight, unacked
// fetches.
func (c *BroadcastConsumer[E]) State() SessionState { return c.state }

// AvailableToFetch returns how many messages the producer has published
// beyond what this consumer has fetched.
func (c *BroadcastConsumer[E]) AvailableToFetch() int64 {
	return c.offerSeq.get() - c.lastFetchedSeq
}

// Fetch deserializes the next message in sequence and returns it, plus
// true. It returns false without advancing if no message is available.
func (c *BroadcastConsumer[E]) Fetch() (E, bool) {
	var zero E
	if c.AvailableToFetch() <= 0 {
		return zero, false
	}

	c.fetchCount++
	c.lastFetchedSeq++
	index := c.indexer.index(c.lastFetchedSeq)
	offset := c.dataOffset + index*int64(c.maxMessageSize)
	if _, err := c.data.ReadFrom(c.region.Bytes()[offset : offset+int64(c.maxMessageSize)]); err != nil {
		c.lastFetchedSeq--
		c.fetchCount--
		return zero, false
	}
	c.state = Fetching
	return c.data, true
}

// RollBack un-fetches the most recent count fetches since the last
// DoneFetching.
func (c *BroadcastConsumer[E]) RollBack(count int64) error {
	if count < 0 || count > c.fetchCount {
		return fmt.Errorf("%w: fetched=%d requested=%d", ErrInvalidArgument, c.fetchCount, count)
	}
	c.lastFetchedSeq -= count
	c.fetchCount -= count
	if c.fetchCount == 0 {
		c.state = Idle
	}
	return nil
}

// DoneFetching publishes the new fetch sequence with release semantics,
// letting the producer know these slots have been read by this consumer.
func (c *BroadcastConsumer[E]) DoneFetching() {
	if c.fetchCount == 0 {
		return
	}
	c.fetchSeq.set(c.lastFetchedSeq)
	c.fetchCount = 0
	c.state = Idle
}

// Close releases the mapped region. deleteFile removes the backing file
// too; only the process that created the ring should pass true.
func (c *BroadcastConsumer[E]) Close(deleteFile bool) error {
	return c.region.Close(deleteFile)
}
